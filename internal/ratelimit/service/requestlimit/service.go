// Package requestlimit enforces per-client sliding window limits on the
// unauthenticated API surface.
package requestlimit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"estateproof/internal/ratelimit/config"
	"estateproof/internal/ratelimit/metrics"
	"estateproof/internal/ratelimit/models"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/platform/privacy"
	"estateproof/pkg/requestcontext"
)

// BucketStore manages sliding window rate limit counters.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// SecurityAuditor records limit violations on the security trail.
// Emission is fire-and-forget; a full buffer never blocks a check.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

type Service struct {
	buckets  BucketStore
	security SecurityAuditor
	logger   *slog.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithSecurityAuditor(auditor SecurityAuditor) Option {
	return func(s *Service) {
		s.security = auditor
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(buckets BucketStore, opts ...Option) (*Service, error) {
	if buckets == nil {
		return nil, errors.New("buckets store is required")
	}

	svc := &Service{
		buckets: buckets,
		config:  config.DefaultConfig(),
		logger:  slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc, nil
}

// CheckIP consumes one slot from the client's window for the given endpoint
// class. A class without a configured limit denies rather than letting
// traffic through unmetered.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	requestsPerWindow, window, ok := s.config.GetLimit(class)
	if !ok {
		s.logger.WarnContext(ctx, "no rate limit configured for endpoint class",
			"endpoint_class", class,
			"ip_prefix", privacy.AnonymizeIP(ip),
			"request_id", requestcontext.RequestID(ctx),
		)
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      0,
			Remaining:  0,
			ResetAt:    requestcontext.Now(ctx),
			RetryAfter: 60,
		}, nil
	}

	key := models.NewRateLimitKey(models.KeyPrefixIP, ip, class)
	result, err := s.buckets.Allow(ctx, key.String(), requestsPerWindow, window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if result.Allowed {
		s.metrics.RecordCheck(class.String(), "allowed")
		return result, nil
	}

	s.metrics.RecordCheck(class.String(), "denied")
	s.metrics.RecordExceeded(class.String())
	s.logger.WarnContext(ctx, "rate limit exceeded",
		"ip_prefix", privacy.AnonymizeIP(ip),
		"endpoint_class", class,
		"limit", requestsPerWindow,
		"window_seconds", int(window.Seconds()),
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.security != nil {
		s.security.Emit(ctx, audit.SecurityEvent{
			Timestamp: requestcontext.Now(ctx),
			Subject:   privacy.AnonymizeIP(ip),
			Action:    string(audit.EventRateLimitExceeded),
			Reason:    fmt.Sprintf("%s: %d per %s", class, requestsPerWindow, window),
			IP:        ip,
			RequestID: requestcontext.RequestID(ctx),
			Severity:  audit.SeverityWarning,
		})
	}

	return result, nil
}
