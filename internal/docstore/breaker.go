package docstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"estateproof/pkg/platform/circuit"
	"estateproof/pkg/platform/sentinel"
)

// BreakerResolver shields callers from a failing document store provider.
// Consecutive provider failures open the circuit; while open, calls return
// a wrapped sentinel.ErrUnavailable without touching the provider, except
// for spaced-out probes that let the circuit close again once the provider
// recovers. A ref the provider reports as unknown is an answer, not a
// failure.
type BreakerResolver struct {
	next    Resolver
	breaker *circuit.Breaker
	logger  *slog.Logger

	probeInterval time.Duration
	probeMu       sync.Mutex
	lastProbe     time.Time
}

// BreakerOption configures a BreakerResolver.
type BreakerOption func(*BreakerResolver)

// WithBreakerLogger sets the logger for state transitions.
func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(r *BreakerResolver) {
		r.logger = logger
	}
}

// WithProbeInterval sets how often an open circuit lets one call through.
func WithProbeInterval(interval time.Duration) BreakerOption {
	return func(r *BreakerResolver) {
		if interval > 0 {
			r.probeInterval = interval
		}
	}
}

// WithBreaker replaces the default breaker, for tuned thresholds.
func WithBreaker(breaker *circuit.Breaker) BreakerOption {
	return func(r *BreakerResolver) {
		if breaker != nil {
			r.breaker = breaker
		}
	}
}

// NewBreakerResolver wraps next with a circuit breaker.
func NewBreakerResolver(next Resolver, opts ...BreakerOption) *BreakerResolver {
	r := &BreakerResolver{
		next:          next,
		breaker:       circuit.New("docstore"),
		logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
		probeInterval: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve delegates to the provider unless the circuit is open.
func (r *BreakerResolver) Resolve(ctx context.Context, ref string) (*DocumentMeta, error) {
	if r.breaker.IsOpen() && !r.probeDue() {
		return nil, fmt.Errorf("document store circuit open: %w", sentinel.ErrUnavailable)
	}

	meta, err := r.next.Resolve(ctx, ref)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		_, change := r.breaker.RecordFailure()
		if change.Opened {
			// Start the probe clock from the moment the circuit opens.
			r.probeMu.Lock()
			r.lastProbe = time.Now()
			r.probeMu.Unlock()

			r.logger.WarnContext(ctx, "document store circuit breaker opened", "error", err)
		}
		return nil, err
	}

	_, change := r.breaker.RecordSuccess()
	if change.Closed {
		r.logger.InfoContext(ctx, "document store circuit breaker closed")
	}
	return meta, err
}

// State exposes the breaker position for readiness reporting.
func (r *BreakerResolver) State() circuit.State {
	return r.breaker.State()
}

// probeDue reports whether an open circuit should let one call through.
func (r *BreakerResolver) probeDue() bool {
	r.probeMu.Lock()
	defer r.probeMu.Unlock()

	if time.Since(r.lastProbe) < r.probeInterval {
		return false
	}
	r.lastProbe = time.Now()
	return true
}
