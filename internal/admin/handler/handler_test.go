package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateproof/internal/admin"
	"estateproof/internal/admin/adapters"
	"estateproof/internal/jwtauth/revocation"
	"estateproof/pkg/platform/audit"
	auditmem "estateproof/pkg/platform/audit/store/memory"
)

const testAdminToken = "test-admin-token"

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

type adminFixture struct {
	router   chi.Router
	store    *auditmem.InMemoryStore
	trl      *revocation.MemoryTRL
	security *captureSecurity
}

func newAdminRouter(t *testing.T, opts ...Option) *adminFixture {
	t.Helper()

	store := auditmem.NewInMemoryStore()
	trl := revocation.NewMemoryTRL()
	security := &captureSecurity{}
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))

	all := append([]Option{WithSecurityAuditor(security)}, opts...)
	h := New(testAdminToken, store, trl, logger, all...)

	r := chi.NewRouter()
	h.Register(r)

	return &adminFixture{router: r, store: store, trl: trl, security: security}
}

func (f *adminFixture) do(method, target, body string, authorized bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("X-Admin-Token", testAdminToken)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	fix := newAdminRouter(t)

	rec := fix.do(http.MethodGet, "/healthz", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp admin.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestReadyzReportsPerDependency(t *testing.T) {
	fix := newAdminRouter(t, WithReadinessChecks(
		Check{Name: "store", Pinger: adapters.AlwaysReady{}},
		Check{Name: "redis", Pinger: adapters.PingFunc(func(context.Context) error { return nil })},
	))

	rec := fix.do(http.MethodGet, "/readyz", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp admin.ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, map[string]string{"store": "ok", "redis": "ok"}, resp.Checks)
}

func TestReadyzDegradedOnFailure(t *testing.T) {
	fix := newAdminRouter(t, WithReadinessChecks(
		Check{Name: "store", Pinger: adapters.AlwaysReady{}},
		Check{Name: "redis", Pinger: adapters.PingFunc(func(context.Context) error {
			return errors.New("connection refused")
		})},
	))

	rec := fix.do(http.MethodGet, "/readyz", "", false)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var resp admin.ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["store"])
	assert.Equal(t, "connection refused", resp.Checks["redis"])
}

func TestMetricsEndpointServes(t *testing.T) {
	fix := newAdminRouter(t)

	rec := fix.do(http.MethodGet, "/metrics", "", false)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	fix := newAdminRouter(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong token", token: "not-the-token"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/audit/recent", nil)
			if tc.token != "" {
				req.Header.Set("X-Admin-Token", tc.token)
			}
			rec := httptest.NewRecorder()
			fix.router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "unauthorized")
		})
	}
}

func TestRecentEventsNewestFirst(t *testing.T) {
	fix := newAdminRouter(t)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	actions := []string{"verification_submitted", "stage_completed", "rate_limit_exceeded"}
	for i, action := range actions {
		require.NoError(t, fix.store.Append(context.Background(), audit.Event{
			Category:  audit.CategoryOperations,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Subject:   "SGP-2024-001234",
			Action:    action,
		}))
	}

	rec := fix.do(http.MethodGet, "/admin/audit/recent?limit=2", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp admin.RecentEventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "rate_limit_exceeded", resp.Events[0].Action)
	assert.Equal(t, "stage_completed", resp.Events[1].Action)
	assert.Equal(t, "SGP-2024-001234", resp.Events[0].Subject)
	assert.Empty(t, resp.Events[0].ReviewerID)
}

func TestRecentEventsEmptyStore(t *testing.T) {
	fix := newAdminRouter(t)

	rec := fix.do(http.MethodGet, "/admin/audit/recent", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp admin.RecentEventsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Zero(t, resp.Total)
	assert.Empty(t, resp.Events)
}

func TestRecentEventsRejectsBadLimit(t *testing.T) {
	fix := newAdminRouter(t)

	for _, limit := range []string{"abc", "0", "-5"} {
		rec := fix.do(http.MethodGet, "/admin/audit/recent?limit="+limit, "", true)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "limit=%s", limit)
	}
}

func TestRevokeToken(t *testing.T) {
	fix := newAdminRouter(t)

	rec := fix.do(http.MethodPost, "/admin/tokens/revoke", `{"token_id":"9f2d6c1a-revoked-jti"}`, true)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp admin.RevokeTokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "9f2d6c1a-revoked-jti", resp.TokenID)
	assert.False(t, resp.RevokedAt.IsZero())

	revoked, err := fix.trl.IsRevoked(context.Background(), "9f2d6c1a-revoked-jti")
	require.NoError(t, err)
	assert.True(t, revoked, "revocation list should refuse the jti from now on")

	event, ok := fix.security.last()
	require.True(t, ok, "revocation should emit a security event")
	assert.Equal(t, string(audit.EventTokenRevoked), event.Action)
	assert.Equal(t, "9f2d6c1a-revoked-jti", event.Subject)
	assert.Equal(t, audit.SeverityCritical, event.Severity)
}

func TestRevokeTokenValidation(t *testing.T) {
	fix := newAdminRouter(t)

	t.Run("empty token id", func(t *testing.T) {
		rec := fix.do(http.MethodPost, "/admin/tokens/revoke", `{"token_id":""}`, true)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := fix.do(http.MethodPost, "/admin/tokens/revoke", `{not json`, true)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("still requires admin token", func(t *testing.T) {
		rec := fix.do(http.MethodPost, "/admin/tokens/revoke", `{"token_id":"x"}`, false)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
