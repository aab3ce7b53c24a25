// Package handler exposes the operational surface: liveness and readiness
// probes, Prometheus metrics, and the token-guarded admin endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"estateproof/internal/admin"
	platformMiddleware "estateproof/internal/platform/middleware"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/audit"
	"estateproof/pkg/platform/httputil"
	adminMiddleware "estateproof/pkg/platform/middleware/admin"
	"estateproof/pkg/platform/middleware/device"
	metadata "estateproof/pkg/platform/middleware/metadata"
	request "estateproof/pkg/platform/middleware/request"
	requesttime "estateproof/pkg/platform/middleware/requesttime"
	"estateproof/pkg/requestcontext"
)

const (
	requestTimeout = 10 * time.Second

	// pingTimeout bounds each readiness probe so one wedged dependency
	// cannot stall the whole endpoint.
	pingTimeout = 2 * time.Second

	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

// AuditFeed reads back stored audit events for the operator feed.
type AuditFeed interface {
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// TokenRevoker blacklists issued reviewer tokens ahead of their natural
// expiry.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// SecurityAuditor emits security events. Emission never blocks the request.
type SecurityAuditor interface {
	Emit(ctx context.Context, event audit.SecurityEvent)
}

// Pinger probes a single dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Check names a dependency and the probe readiness runs against it.
type Check struct {
	Name   string
	Pinger Pinger
}

// Handler serves the operational routes.
type Handler struct {
	logger         *slog.Logger
	adminToken     string
	feed           AuditFeed
	revoker        TokenRevoker
	security       SecurityAuditor
	checks         []Check
	revocationTTL  time.Duration
	metricsHandler http.Handler
}

type Option func(*Handler)

// WithReadinessChecks sets the dependency probes /readyz runs, in order.
func WithReadinessChecks(checks ...Check) Option {
	return func(h *Handler) {
		h.checks = checks
	}
}

// WithSecurityAuditor wires the auditor that records revocations.
func WithSecurityAuditor(security SecurityAuditor) Option {
	return func(h *Handler) {
		h.security = security
	}
}

// WithRevocationTTL sets how long a revoked token id is remembered. It
// should cover the access token lifetime; entries past it are dead weight.
func WithRevocationTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		h.revocationTTL = ttl
	}
}

// WithMetricsHandler overrides the Prometheus handler.
func WithMetricsHandler(mh http.Handler) Option {
	return func(h *Handler) {
		h.metricsHandler = mh
	}
}

// New creates the operational Handler.
func New(adminToken string, feed AuditFeed, revoker TokenRevoker, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		adminToken:     adminToken,
		feed:           feed,
		revoker:        revoker,
		revocationTTL:  24 * time.Hour,
		metricsHandler: promhttp.Handler(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the operational routes with the chi router. Probes and
// metrics stay on a lean chain so a slow middleware stack cannot distort
// them; the admin routes carry the full chain plus the shared-token guard.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(ops chi.Router) {
		ops.Use(platformMiddleware.Recovery(h.logger))
		ops.Get("/healthz", h.handleHealthz)
		ops.Get("/readyz", h.handleReadyz)
		ops.Handle("/metrics", h.metricsHandler)
	})

	r.Group(func(api chi.Router) {
		api.Use(platformMiddleware.Recovery(h.logger))
		api.Use(request.RequestID)
		api.Use(metadata.ClientMetadata)
		api.Use(requesttime.Middleware)
		api.Use(platformMiddleware.Logger(h.logger))
		api.Use(platformMiddleware.Timeout(requestTimeout))
		api.Use(platformMiddleware.ContentTypeJSON)
		api.Use(adminMiddleware.RequireAdminToken(h.adminToken, h.logger))
		api.Get("/admin/audit/recent", h.handleRecentEvents)
		api.Post("/admin/tokens/revoke", h.handleRevokeToken)
	})
}

// handleHealthz reports process liveness. It never consults dependencies;
// a live process with unreachable backends is readiness's problem.
func (h *Handler) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, admin.HealthResponse{Status: "ok"})
}

// handleReadyz probes every registered dependency and reports per-check
// results. Any failure flips the status to 503 so load balancers drain
// traffic away.
func (h *Handler) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := make(map[string]string, len(h.checks))
	ready := true
	for _, c := range h.checks {
		if err := h.ping(ctx, c.Pinger); err != nil {
			checks[c.Name] = err.Error()
			ready = false
			continue
		}
		checks[c.Name] = "ok"
	}

	resp := admin.ReadinessResponse{Status: "ready", Checks: checks}
	if !ready {
		resp.Status = "degraded"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ping(ctx context.Context, p Pinger) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Ping(pingCtx)
}

// handleRecentEvents returns the newest audit events for operator triage.
func (h *Handler) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer"))
			return
		}
		limit = min(parsed, maxRecentLimit)
	}

	events, err := h.feed.ListRecent(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list recent audit events",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to list audit events"))
		return
	}

	views := make([]*admin.AuditEventView, len(events))
	for i, e := range events {
		views[i] = admin.NewAuditEventView(e)
	}
	httputil.WriteJSON(w, http.StatusOK, admin.RecentEventsResponse{Events: views, Total: len(views)})
}

// handleRevokeToken blacklists a token id so the auth middleware refuses it
// from the next request on, without waiting for the token to expire.
func (h *Handler) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req admin.RevokeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.TokenID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "token_id is required"))
		return
	}

	if err := h.revoker.RevokeToken(ctx, req.TokenID, h.revocationTTL); err != nil {
		h.logger.ErrorContext(ctx, "failed to revoke token",
			"request_id", request.GetRequestID(ctx),
			"token_id", req.TokenID,
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to revoke token"))
		return
	}

	now := requestcontext.Now(ctx)
	if h.security != nil {
		h.security.Emit(ctx, audit.SecurityEvent{
			Timestamp: now,
			Subject:   req.TokenID,
			Action:    string(audit.EventTokenRevoked),
			Reason:    "revoked by administrator",
			IP:        requestcontext.ClientIP(ctx),
			Device:    deviceSummary(ctx),
			RequestID: request.GetRequestID(ctx),
			Severity:  audit.SeverityCritical,
		})
	}

	h.logger.InfoContext(ctx, "reviewer token revoked",
		"request_id", request.GetRequestID(ctx),
		"token_id", req.TokenID,
	)

	httputil.WriteJSON(w, http.StatusOK, admin.RevokeTokenResponse{
		TokenID:   req.TokenID,
		RevokedAt: now,
	})
}

func deviceSummary(ctx context.Context) string {
	ua := requestcontext.UserAgent(ctx)
	if ua == "" {
		return ""
	}
	return device.ParseUserAgent(ua)
}
