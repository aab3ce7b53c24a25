package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estateproof/internal/ratelimit/models"
	metadata "estateproof/pkg/platform/middleware/metadata"
)

type fakeLimiter struct {
	result   *models.RateLimitResult
	err      error
	calls    int
	gotIP    string
	gotClass models.EndpointClass
}

func (f *fakeLimiter) CheckIP(_ context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	f.calls++
	f.gotIP = ip
	f.gotClass = class
	return f.result, f.err
}

func TestRateLimitAllowsAndSetsHeaders(t *testing.T) {
	resetAt := time.Now().Add(time.Minute).Truncate(time.Second)
	limiter := &fakeLimiter{result: &models.RateLimitResult{
		Allowed:   true,
		Limit:     30,
		Remaining: 29,
		ResetAt:   resetAt,
	}}
	handler := newLimitedHandler(t, limiter)

	rec := doRequest(handler, "203.0.113.9")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected request to pass through, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "30" {
		t.Fatalf("expected limit header 30, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "29" {
		t.Fatalf("expected remaining header 29, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Reset"); got == "" {
		t.Fatalf("expected reset header to be set")
	}
}

func TestRateLimitDeniesWith429(t *testing.T) {
	limiter := &fakeLimiter{result: &models.RateLimitResult{
		Allowed:    false,
		Limit:      30,
		Remaining:  0,
		ResetAt:    time.Now().Add(17 * time.Second),
		RetryAfter: 17,
	}}
	handler := newLimitedHandler(t, limiter)

	rec := doRequest(handler, "203.0.113.9")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "17" {
		t.Fatalf("expected Retry-After 17, got %q", got)
	}

	var resp models.RateLimitExceededResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode 429 body: %v", err)
	}
	if resp.Error != "rate_limit_exceeded" {
		t.Fatalf("expected rate_limit_exceeded error, got %q", resp.Error)
	}
	if resp.RetryAfter != 17 {
		t.Fatalf("expected retry_after 17, got %d", resp.RetryAfter)
	}
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("store unavailable")}
	handler := newLimitedHandler(t, limiter)

	rec := doRequest(handler, "203.0.113.9")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected limiter failure to let the request through, got %d", rec.Code)
	}
}

func TestRateLimitDisabledSkipsLimiter(t *testing.T) {
	limiter := &fakeLimiter{result: &models.RateLimitResult{Allowed: false}}
	handler := newLimitedHandler(t, limiter, WithDisabled(true))

	rec := doRequest(handler, "203.0.113.9")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected disabled middleware to pass through, got %d", rec.Code)
	}
	if limiter.calls != 0 {
		t.Fatalf("expected limiter to be skipped, got %d calls", limiter.calls)
	}
}

func TestRateLimitPassesClientIPAndClass(t *testing.T) {
	limiter := &fakeLimiter{result: &models.RateLimitResult{Allowed: true, Limit: 30, Remaining: 29}}
	handler := newLimitedHandler(t, limiter)

	doRequest(handler, "198.51.100.42")
	if limiter.gotIP != "198.51.100.42" {
		t.Fatalf("expected limiter to see the forwarded client IP, got %q", limiter.gotIP)
	}
	if limiter.gotClass != models.ClassSubmit {
		t.Fatalf("expected submit class, got %q", limiter.gotClass)
	}
}

// newLimitedHandler wires the limiter behind the metadata middleware the way
// the server chain does, fronting a handler that replies 204.
func newLimitedHandler(t *testing.T, limiter RateLimiter, opts ...Option) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	mw := New(limiter, logger, opts...)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return metadata.ClientMetadata(mw.RateLimit(models.ClassSubmit)(next))
}

func doRequest(handler http.Handler, clientIP string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications", nil)
	req.Header.Set("X-Forwarded-For", clientIP)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
