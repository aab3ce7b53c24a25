package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"estateproof/internal/jwtauth"
	"estateproof/internal/reviewer/models"
	"estateproof/internal/reviewer/store"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/requestcontext"
	"estateproof/pkg/secrets"
)

// captureSecurity records emitted security events for assertions.
type captureSecurity struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (c *captureSecurity) Emit(_ context.Context, event audit.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSecurity) last() audit.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return audit.SecurityEvent{}
	}
	return c.events[len(c.events)-1]
}

type AuthSuite struct {
	suite.Suite
	store    *store.InMemory
	jwt      *jwtauth.JWTService
	security *captureSecurity
	service  *Service
}

func (s *AuthSuite) SetupTest() {
	s.store = store.NewInMemory()
	_, err := store.Seed(s.store, []store.SeedEntry{
		{Email: "asha.verma@example.com", APIKey: "correct-horse-battery"},
	})
	s.Require().NoError(err)

	s.jwt = jwtauth.NewJWTService("test-signing-key", "estateproof", "reviewers", time.Hour)
	s.security = &captureSecurity{}

	s.service, err = New(s.store, s.jwt, WithSecurityAuditor(s.security))
	s.Require().NoError(err)
}

// ============================================================
// Constructor Tests
// ============================================================

func (s *AuthSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.jwt)
	s.Require().Error(err)

	_, err = New(s.store, nil)
	s.Require().Error(err)
}

// ============================================================
// Authenticate Tests
// ============================================================

func (s *AuthSuite) TestAuthenticateSuccess() {
	ctx := context.Background()

	issued, reviewer, err := s.service.Authenticate(ctx, "asha.verma@example.com", "correct-horse-battery")
	s.Require().NoError(err)
	s.NotEmpty(issued.Token)
	s.NotEmpty(issued.TokenID)
	s.Equal("Asha Verma", reviewer.Name)

	// The minted token validates and names the reviewer.
	claims, err := s.jwt.ValidateToken(issued.Token)
	s.Require().NoError(err)
	s.Equal(reviewer.ID.String(), claims.ReviewerID)
	s.Equal(issued.TokenID, claims.ID)

	event := s.security.last()
	s.Equal(string(audit.EventReviewerLogin), event.Action)
	s.Equal(reviewer.ID.String(), event.Subject)
	s.Contains(event.Reason, issued.TokenID)
	s.Equal(audit.SeverityInfo, event.Severity)
}

func (s *AuthSuite) TestAuthenticateRecordsClientDevice() {
	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0")

	_, _, err := s.service.Authenticate(ctx, "asha.verma@example.com", "correct-horse-battery")
	s.Require().NoError(err)

	event := s.security.last()
	s.Equal("203.0.113.7", event.IP)
	s.Contains(event.Device, "Firefox")
	s.Contains(event.ToEvent().Client, "203.0.113.7 (")
}

func (s *AuthSuite) TestAuthenticateNormalizesEmail() {
	_, reviewer, err := s.service.Authenticate(context.Background(), "  ASHA.VERMA@Example.COM ", "correct-horse-battery")
	s.Require().NoError(err)
	s.Equal("asha.verma@example.com", reviewer.Email)
}

func (s *AuthSuite) TestAuthenticateUnknownEmail() {
	_, _, err := s.service.Authenticate(context.Background(), "nobody@example.com", "correct-horse-battery")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	event := s.security.last()
	s.Equal(string(audit.EventReviewerLoginFailed), event.Action)
	s.Equal("unknown_reviewer", event.Reason)
	s.Equal(audit.SeverityWarning, event.Severity)
}

func (s *AuthSuite) TestAuthenticateWrongKey() {
	_, _, err := s.service.Authenticate(context.Background(), "asha.verma@example.com", "some-other-key")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	event := s.security.last()
	s.Equal(string(audit.EventReviewerLoginFailed), event.Action)
	s.Equal("bad_api_key", event.Reason)
}

func (s *AuthSuite) TestAuthenticateInactiveReviewer() {
	hash, err := secrets.Hash("dormant-key")
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), &models.Reviewer{
		ID:         store.DeterministicID("vikram.rao@example.com"),
		Name:       "Vikram Rao",
		Email:      "vikram.rao@example.com",
		APIKeyHash: hash,
		Active:     false,
	}))

	_, _, err = s.service.Authenticate(context.Background(), "vikram.rao@example.com", "dormant-key")
	s.Require().True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	s.Equal("inactive_reviewer", s.security.last().Reason)
}

func (s *AuthSuite) TestRejectionsAreIndistinguishable() {
	_, _, unknownErr := s.service.Authenticate(context.Background(), "nobody@example.com", "k")
	_, _, wrongKeyErr := s.service.Authenticate(context.Background(), "asha.verma@example.com", "k")

	s.Require().Error(unknownErr)
	s.Require().Error(wrongKeyErr)
	s.Equal(unknownErr.Error(), wrongKeyErr.Error())
}

func TestAuthSuite(t *testing.T) {
	suite.Run(t, new(AuthSuite))
}
