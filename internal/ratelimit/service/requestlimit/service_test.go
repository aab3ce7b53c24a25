package requestlimit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"estateproof/internal/ratelimit/config"
	"estateproof/internal/ratelimit/models"
	"estateproof/internal/ratelimit/store/bucket"
	"estateproof/pkg/platform/audit"
)

type captureSecurity struct {
	mu     sync.Mutex
	events []audit.SecurityEvent
}

func (c *captureSecurity) Emit(_ context.Context, event audit.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSecurity) last() (audit.SecurityEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return audit.SecurityEvent{}, false
	}
	return c.events[len(c.events)-1], true
}

func (c *captureSecurity) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type RequestLimitSuite struct {
	suite.Suite
	ctx      context.Context
	cfg      *config.Config
	security *captureSecurity
	svc      *Service
}

func TestRequestLimitSuite(t *testing.T) {
	suite.Run(t, new(RequestLimitSuite))
}

func (s *RequestLimitSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = config.DefaultConfig()
	s.cfg.SetLimit(models.ClassSubmit, 3, time.Minute)
	s.security = &captureSecurity{}

	svc, err := New(bucket.NewInMemoryBucketStore(),
		WithConfig(s.cfg),
		WithSecurityAuditor(s.security),
	)
	s.Require().NoError(err)
	s.svc = svc
}

// ============================================================================
// Constructor Tests
// ============================================================================

func (s *RequestLimitSuite) TestNewRequiresBuckets() {
	_, err := New(nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "buckets store is required")
}

// ============================================================================
// CheckIP Tests
// ============================================================================

func (s *RequestLimitSuite) TestAllowsUnderLimit() {
	for want := 2; want >= 0; want-- {
		result, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(3, result.Limit)
		s.Equal(want, result.Remaining)
	}
	s.Equal(0, s.security.count())
}

func (s *RequestLimitSuite) TestDeniesOverLimitAndAudits() {
	for range 3 {
		_, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
		s.Require().NoError(err)
	}

	result, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.GreaterOrEqual(result.RetryAfter, 1)

	event, ok := s.security.last()
	s.Require().True(ok, "expected a security event for the denied request")
	s.Equal(string(audit.EventRateLimitExceeded), event.Action)
	s.Equal(audit.SeverityWarning, event.Severity)
	s.Equal("203.0.113.9", event.IP)
	s.Equal("203.0.113.0/24", event.Subject)
	s.True(strings.Contains(event.Reason, "submit"), "reason should name the class: %q", event.Reason)
}

func (s *RequestLimitSuite) TestUnknownClassIsDenied() {
	result, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.EndpointClass("bulk-export"))
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(60, result.RetryAfter)
	// Misconfiguration is an operator problem, not a security signal.
	s.Equal(0, s.security.count())
}

func (s *RequestLimitSuite) TestClientsAreIsolated() {
	for range 3 {
		_, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
		s.Require().NoError(err)
	}
	denied, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
	s.Require().NoError(err)
	s.False(denied.Allowed)

	allowed, err := s.svc.CheckIP(s.ctx, "198.51.100.7", models.ClassSubmit)
	s.Require().NoError(err)
	s.True(allowed.Allowed)
}

func (s *RequestLimitSuite) TestClassesHaveSeparateBudgets() {
	for range 3 {
		_, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
		s.Require().NoError(err)
	}
	denied, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
	s.Require().NoError(err)
	s.False(denied.Allowed)

	login, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassLogin)
	s.Require().NoError(err)
	s.True(login.Allowed)
}

func (s *RequestLimitSuite) TestWindowSlides() {
	s.cfg.SetLimit(models.ClassSubmit, 1, 60*time.Millisecond)

	first, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
	s.Require().NoError(err)
	s.True(first.Allowed)

	second, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
	s.Require().NoError(err)
	s.False(second.Allowed)

	time.Sleep(80 * time.Millisecond)

	third, err := s.svc.CheckIP(s.ctx, "203.0.113.9", models.ClassSubmit)
	s.Require().NoError(err)
	s.True(third.Allowed)
}
