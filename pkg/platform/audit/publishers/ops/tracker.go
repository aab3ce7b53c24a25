// Package ops provides a fail-open audit tracker for operational events.
//
// Tracker emits ops events with non-blocking, sampled, fire-and-forget
// semantics. Stage telemetry is high volume and must never slow down or
// fail a verification, so drops are acceptable and counted.
//
// Use for: stage_started, stage_completed, stage_failed, verification_queued
package ops

import (
	"context"
	"log/slog"
	"sync"
	"time"

	audit "estateproof/pkg/platform/audit"
	"estateproof/pkg/platform/circuit"
)

const (
	defaultBuffer        = 1024
	defaultProbeInterval = 30 * time.Second
)

// Tracker persists ops events in the background. A circuit breaker guards
// the store: while open, events are dropped except for a periodic probe
// write that lets the breaker observe recovery.
type Tracker struct {
	store   audit.Store
	sampler *Sampler
	breaker *circuit.Breaker
	metrics *Metrics
	logger  *slog.Logger

	probeInterval time.Duration
	probeMu       sync.Mutex
	lastProbe     time.Time

	inbox chan audit.OpsEvent
	done  chan struct{}
	once  sync.Once
}

// TrackerOption configures the Tracker.
type TrackerOption func(*Tracker)

// WithSampler sets the event sampler. Without one, every event is kept.
func WithSampler(s *Sampler) TrackerOption {
	return func(t *Tracker) {
		t.sampler = s
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) TrackerOption {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// WithLogger sets a logger for drop and breaker transitions.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithBuffer sets the inbox buffer size.
func WithBuffer(size int) TrackerOption {
	return func(t *Tracker) {
		if size > 0 {
			t.inbox = make(chan audit.OpsEvent, size)
		}
	}
}

// WithProbeInterval sets how often an open breaker lets a probe write through.
func WithProbeInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.probeInterval = d
		}
	}
}

// NewTracker creates an ops tracker and starts its background worker.
func NewTracker(store audit.Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:         store,
		breaker:       circuit.New("audit-ops"),
		probeInterval: defaultProbeInterval,
		lastProbe:     time.Now(),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.inbox == nil {
		t.inbox = make(chan audit.OpsEvent, defaultBuffer)
	}
	go t.run()
	return t
}

// Track records an operational event. Never blocks and never fails the
// caller: sampled-out, buffer-full, and breaker-open events are dropped.
func (t *Tracker) Track(ctx context.Context, event audit.OpsEvent) {
	if t.sampler != nil && !t.sampler.ShouldSample(event.Action) {
		if t.metrics != nil {
			t.metrics.IncSampled()
		}
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case t.inbox <- event:
	default:
		if t.logger != nil {
			t.logger.DebugContext(ctx, "ops audit buffer full, dropping event",
				"action", event.Action,
				"subject", event.Subject,
			)
		}
	}
}

// Close drains buffered events and stops the worker.
// Safe to call multiple times.
func (t *Tracker) Close() {
	t.once.Do(func() {
		close(t.inbox)
		<-t.done
	})
}

func (t *Tracker) run() {
	defer close(t.done)
	for event := range t.inbox {
		t.persist(event)
	}
}

func (t *Tracker) persist(event audit.OpsEvent) {
	if t.breaker.IsOpen() && !t.probeDue() {
		if t.metrics != nil {
			t.metrics.IncCircuitBreakerDropped()
		}
		return
	}

	err := t.store.Append(context.Background(), event.ToEvent())
	if err != nil {
		if t.metrics != nil {
			t.metrics.IncPersistFailures()
		}
		_, change := t.breaker.RecordFailure()
		if change.Opened {
			// Start the probe clock from the moment the circuit opens.
			t.probeMu.Lock()
			t.lastProbe = time.Now()
			t.probeMu.Unlock()

			if t.metrics != nil {
				t.metrics.SetCircuitBreakerState(true)
			}
			if t.logger != nil {
				t.logger.Warn("ops audit circuit breaker opened", "error", err)
			}
		}
		return
	}

	if t.metrics != nil {
		t.metrics.IncTracked()
	}
	_, change := t.breaker.RecordSuccess()
	if change.Closed {
		if t.metrics != nil {
			t.metrics.SetCircuitBreakerState(false)
		}
		if t.logger != nil {
			t.logger.Info("ops audit circuit breaker closed")
		}
	}
}

// probeDue reports whether an open breaker should let one write through.
// The breaker closes only after enough successful probes, so spacing them
// out avoids hammering a store that is still down.
func (t *Tracker) probeDue() bool {
	t.probeMu.Lock()
	defer t.probeMu.Unlock()

	if time.Since(t.lastProbe) < t.probeInterval {
		return false
	}
	t.lastProbe = time.Now()
	return true
}
