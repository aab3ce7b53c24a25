// Package service authenticates reviewers and mints their access tokens.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"estateproof/internal/jwtauth"
	"estateproof/internal/reviewer/models"
	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/platform/middleware/device"
	"estateproof/pkg/platform/sentinel"
	"estateproof/pkg/requestcontext"
	"estateproof/pkg/secrets"
)

// ReviewerStore looks up reviewer accounts.
type ReviewerStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Reviewer, error)
}

// TokenIssuer mints reviewer access tokens.
type TokenIssuer interface {
	IssueToken(reviewerID id.ReviewerID) (jwtauth.IssuedToken, error)
}

// SecurityAuditor records login outcomes for forensics. Emission is
// fire-and-forget; a full buffer never blocks a login.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// Service authenticates reviewers against their stored API key hashes.
type Service struct {
	reviewers ReviewerStore
	tokens    TokenIssuer
	security  SecurityAuditor
	logger    *slog.Logger
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

// New constructs a Service.
func New(reviewers ReviewerStore, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if reviewers == nil {
		return nil, errors.New("reviewer store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{reviewers: reviewers, tokens: tokens}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return s, nil
}

// Authenticate verifies a reviewer's API key and mints an access token.
// Every rejection carries the same message so callers cannot probe which
// emails exist; the security audit trail keeps the real reason.
func (s *Service) Authenticate(ctx context.Context, reviewerEmail, apiKey string) (jwtauth.IssuedToken, *models.Reviewer, error) {
	reviewer, err := s.reviewers.FindByEmail(ctx, reviewerEmail)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.recordLoginFailure(ctx, reviewerEmail, "unknown_reviewer")
			return jwtauth.IssuedToken{}, nil, errInvalidCredentials()
		}
		return jwtauth.IssuedToken{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "reviewer lookup failed")
	}

	if !reviewer.Active {
		s.recordLoginFailure(ctx, reviewer.Email, "inactive_reviewer")
		return jwtauth.IssuedToken{}, nil, errInvalidCredentials()
	}

	if err := secrets.Verify(apiKey, reviewer.APIKeyHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			s.recordLoginFailure(ctx, reviewer.Email, "bad_api_key")
			return jwtauth.IssuedToken{}, nil, errInvalidCredentials()
		}
		return jwtauth.IssuedToken{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "api key verification failed")
	}

	issued, err := s.tokens.IssueToken(reviewer.ID)
	if err != nil {
		return jwtauth.IssuedToken{}, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	s.emitSecurity(ctx, audit.SecurityEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   reviewer.ID.String(),
		Action:    string(audit.EventReviewerLogin),
		Reason:    "issued " + issued.TokenID,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityInfo,
	})
	s.logger.InfoContext(ctx, "reviewer authenticated",
		"reviewer_id", reviewer.ID.String(),
		"jti", issued.TokenID,
	)
	return issued, reviewer, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, subject, reason string) {
	s.emitSecurity(ctx, audit.SecurityEvent{
		Timestamp: requestcontext.Now(ctx),
		Subject:   subject,
		Action:    string(audit.EventReviewerLoginFailed),
		Reason:    reason,
		IP:        requestcontext.ClientIP(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Severity:  audit.SeverityWarning,
	})
	s.logger.WarnContext(ctx, "reviewer login failed",
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (s *Service) emitSecurity(ctx context.Context, event audit.SecurityEvent) {
	if s.security == nil {
		return
	}
	if ua := requestcontext.UserAgent(ctx); ua != "" {
		event.Device = device.ParseUserAgent(ua)
	}
	s.security.Emit(ctx, event)
}

func errInvalidCredentials() error {
	return dErrors.New(dErrors.CodeUnauthorized, "invalid reviewer credentials")
}
