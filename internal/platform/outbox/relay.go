// Package outbox relays audit events from the postgres outbox table to Kafka.
//
// The relay gives the write path transactional audit guarantees without a
// Kafka dependency on the request path: domain writes and their outbox rows
// commit together, then this poller publishes and marks them. Publication is
// at-least-once; consumers materialize idempotently.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "estateproof/pkg/platform/audit"
	auditpg "estateproof/pkg/platform/audit/store/postgres"

	"github.com/google/uuid"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultBatchSize    = 100
)

// Store reads and stamps outbox rows.
type Store interface {
	PendingOutbox(ctx context.Context, limit int) ([]auditpg.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher sends a single record to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls for unpublished outbox entries and forwards them to Kafka.
type Relay struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger

	pollInterval time.Duration
	batchSize    int
}

// Option configures the Relay.
type Option func(*Relay)

// WithPollInterval sets how often the outbox is polled when idle.
func WithPollInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithBatchSize sets the maximum entries published per poll.
func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// New creates an outbox relay.
func New(store Store, publisher Publisher, logger *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:        store,
		publisher:    publisher,
		logger:       logger,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until the context is cancelled. A full batch triggers an
// immediate re-poll so backlogs drain faster than the poll interval.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		n, err := r.Drain(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
		}
		if n == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain publishes one batch of pending entries and returns how many were
// published and marked.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	entries, err := r.store.PendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("read outbox: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		topic := audit.TopicForAction(entry.EventType)
		// Key by aggregate so per-property events stay ordered in a partition.
		if err := r.publisher.Publish(ctx, topic, []byte(entry.AggregateID), entry.Payload); err != nil {
			// Mark what made it out; the rest retries next poll.
			if markErr := r.store.MarkPublished(ctx, published); markErr != nil {
				r.logger.ErrorContext(ctx, "failed to mark published outbox entries",
					"count", len(published),
					"error", markErr,
				)
			}
			return len(published), fmt.Errorf("publish outbox entry %s: %w", entry.ID, err)
		}
		published = append(published, entry.ID)
	}

	if err := r.store.MarkPublished(ctx, published); err != nil {
		// Entries will be republished; consumers dedupe by event ID.
		return len(published), fmt.Errorf("mark published: %w", err)
	}

	r.logger.DebugContext(ctx, "outbox batch relayed", "count", len(published))
	return len(published), nil
}
