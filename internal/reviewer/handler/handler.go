// Package handler exposes reviewer login over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"estateproof/internal/jwtauth"
	platformMiddleware "estateproof/internal/platform/middleware"
	reviewerModels "estateproof/internal/reviewer/models"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/httputil"
	metadata "estateproof/pkg/platform/middleware/metadata"
	request "estateproof/pkg/platform/middleware/request"
	requesttime "estateproof/pkg/platform/middleware/requesttime"

	platformMetrics "estateproof/internal/platform/metrics"
)

const requestTimeout = 10 * time.Second

// AuthService defines the login operation the HTTP layer depends on.
type AuthService interface {
	Authenticate(ctx context.Context, reviewerEmail, apiKey string) (jwtauth.IssuedToken, *reviewerModels.Reviewer, error)
}

// LoginRequest is the payload for exchanging an API key for a token.
type LoginRequest struct {
	Email  string `json:"email"`
	APIKey string `json:"api_key"`
}

// LoginResponse carries the minted bearer token.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ReviewerID  string    `json:"reviewer_id"`
	Name        string    `json:"name"`
}

// Handler handles reviewer login.
type Handler struct {
	logger     *slog.Logger
	auth       AuthService
	metrics    *platformMetrics.Metrics
	loginLimit func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithLoginLimiter applies a rate-limit middleware to the login route.
func WithLoginLimiter(limiter func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.loginLimit = limiter
	}
}

// New creates a reviewer Handler.
func New(auth AuthService, logger *slog.Logger, metrics *platformMetrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:  logger,
		auth:    auth,
		metrics: metrics,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the reviewer routes with the chi router. Routes attach
// in a group so this surface carries its own middleware chain while sharing
// the server's root router with the other handlers.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(api chi.Router) {
		api.Use(platformMiddleware.Recovery(h.logger))
		api.Use(request.RequestID)
		api.Use(metadata.ClientMetadata)
		api.Use(requesttime.Middleware)
		api.Use(platformMiddleware.Logger(h.logger))
		api.Use(platformMiddleware.Timeout(requestTimeout))
		api.Use(platformMiddleware.ContentTypeJSON)
		api.Use(platformMiddleware.LatencyMiddleware(h.metrics))
		if h.loginLimit != nil {
			api.Use(h.loginLimit)
		}
		api.Post("/api/v1/reviewers/login", h.handleLogin)
	})
}

// handleLogin exchanges a reviewer's API key for a bearer token.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.Email == "" || req.APIKey == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "email and api_key are required"))
		return
	}

	issued, reviewer, err := h.auth.Authenticate(ctx, req.Email, req.APIKey)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			// The service already recorded the failure with its real cause.
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "reviewer login failed",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "login failed"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: issued.Token,
		TokenType:   "Bearer",
		ExpiresAt:   issued.ExpiresAt,
		ReviewerID:  reviewer.ID.String(),
		Name:        reviewer.Name,
	})
}
