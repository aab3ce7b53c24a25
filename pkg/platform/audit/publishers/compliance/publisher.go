// Package compliance provides the fail-closed audit publisher for the
// verification lifecycle.
//
// Compliance events are the regulatory record of what happened to a
// verification: submission, the reviewer's decision, approval, rejection,
// cancellation. They are written synchronously to the outbox-backed store,
// and a failed write fails the business operation that produced the event.
// An operation that cannot be recorded must not happen.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "estateproof/pkg/platform/audit"
)

// Publisher writes compliance events synchronously. The zero logger and
// metrics are valid; failures still propagate to the caller either way.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher. The store must be outbox-backed in
// production so a write survives anything short of losing the database.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit persists the event before returning. A non-nil error means the event
// was not recorded and the calling operation must abort.
func (p *Publisher) Emit(ctx context.Context, event audit.ComplianceEvent) error {
	start := time.Now()

	if event.Subject == "" {
		return fmt.Errorf("compliance event requires Subject")
	}
	if event.Action == "" {
		return fmt.Errorf("compliance event requires Action")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, event.ToEvent()); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted()
	}

	return nil
}

// Close is a no-op; Emit holds no background state.
func (p *Publisher) Close() error {
	return nil
}
