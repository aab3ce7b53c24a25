// Package security provides a buffered audit publisher for security events.
//
// Auditor emits security events with non-blocking semantics backed by a
// bounded ring buffer. A background flusher drains the buffer to the store
// in batches; failed writes are re-queued so transient store outages do not
// lose forensic evidence, while sustained outages drop oldest-first.
//
// Use for: reviewer_login_failed, token_revoked, rate_limit_exceeded
package security

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "estateproof/pkg/platform/audit"
)

const (
	defaultFlushInterval = time.Second
	defaultBatchSize     = 64
)

// Auditor buffers security events and persists them in the background.
type Auditor struct {
	store  audit.Store
	buffer *RingBuffer
	logger *slog.Logger

	flushInterval time.Duration
	batchSize     int

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// AuditorOption configures the Auditor.
type AuditorOption func(*Auditor)

// WithLogger sets a logger for flush failures.
func WithLogger(logger *slog.Logger) AuditorOption {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// WithBufferCapacity sets the ring buffer capacity.
func WithBufferCapacity(n int) AuditorOption {
	return func(a *Auditor) {
		a.buffer = NewRingBuffer(n)
	}
}

// WithFlushInterval sets how often the buffer is drained.
func WithFlushInterval(d time.Duration) AuditorOption {
	return func(a *Auditor) {
		if d > 0 {
			a.flushInterval = d
		}
	}
}

// WithBatchSize sets the maximum events drained per flush.
func WithBatchSize(n int) AuditorOption {
	return func(a *Auditor) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// New creates a security auditor and starts its background flusher.
func New(store audit.Store, opts ...AuditorOption) *Auditor {
	a := &Auditor{
		store:         store,
		flushInterval: defaultFlushInterval,
		batchSize:     defaultBatchSize,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.buffer == nil {
		a.buffer = NewRingBuffer(0)
	}
	go a.run()
	return a
}

// Emit records a security event. Never blocks and never fails the caller;
// when the buffer is full the oldest event is overwritten.
func (a *Auditor) Emit(_ context.Context, event audit.SecurityEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = audit.SeverityInfo
	}
	a.buffer.Enqueue(event)
}

// Close flushes remaining events and stops the background flusher.
// Safe to call multiple times.
func (a *Auditor) Close() {
	a.once.Do(func() {
		close(a.stop)
		<-a.done
	})
}

func (a *Auditor) run() {
	defer close(a.done)

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.flush()
		case <-a.stop:
			a.flush()
			return
		}
	}
}

func (a *Auditor) flush() {
	for {
		batch := a.buffer.DequeueBatch(a.batchSize)
		if len(batch) == 0 {
			return
		}

		for i, event := range batch {
			if err := a.store.Append(context.Background(), event.ToEvent()); err != nil {
				// Re-queue this and the rest of the batch for the next flush.
				for _, pending := range batch[i:] {
					a.buffer.Enqueue(pending)
				}
				if a.logger != nil {
					a.logger.Warn("security audit flush failed, events re-queued",
						"pending", a.buffer.Len(),
						"error", err,
					)
				}
				return
			}
		}

		if len(batch) < a.batchSize {
			return
		}
	}
}
