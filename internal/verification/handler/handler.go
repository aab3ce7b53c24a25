// Package handler exposes the verification service over HTTP. It stays a
// thin translation layer: decode, delegate, map domain errors to statuses.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	platformMiddleware "estateproof/internal/platform/middleware"
	"estateproof/internal/verification/models"
	"estateproof/internal/verification/queue"
	"estateproof/internal/verification/service"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/platform/httputil"
	auth "estateproof/pkg/platform/middleware/auth"
	metadata "estateproof/pkg/platform/middleware/metadata"
	request "estateproof/pkg/platform/middleware/request"
	requesttime "estateproof/pkg/platform/middleware/requesttime"

	platformMetrics "estateproof/internal/platform/metrics"
)

const requestTimeout = 30 * time.Second

// Service defines the verification operations the HTTP layer depends on.
type Service interface {
	Submit(ctx context.Context, propertyID string, refs []models.DocumentRef, facts models.PropertyFacts) (*models.VerificationRecord, error)
	GetStatus(ctx context.Context, propertyID string) (*service.StatusView, error)
	Decide(ctx context.Context, propertyID string, decision service.Decision) (*models.VerificationRecord, error)
	Cancel(ctx context.Context, propertyID string) error
	ListQueue(ctx context.Context) []queue.Entry
}

// Handler handles verification endpoints.
type Handler struct {
	logger        *slog.Logger
	verifications Service
	metrics       *platformMetrics.Metrics
	jwtValidator  auth.JWTValidator
	revocations   auth.TokenRevocationChecker
	submitLimit   func(http.Handler) http.Handler
}

// Option configures optional Handler collaborators.
type Option func(*Handler)

// WithTokenRevocationChecker makes the auth middleware reject revoked tokens.
func WithTokenRevocationChecker(checker auth.TokenRevocationChecker) Option {
	return func(h *Handler) {
		h.revocations = checker
	}
}

// WithSubmitLimiter applies a rate-limit middleware to the submission route.
func WithSubmitLimiter(limiter func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitLimit = limiter
	}
}

// New creates a verification Handler.
func New(
	verifications Service,
	logger *slog.Logger,
	metrics *platformMetrics.Metrics,
	jwtValidator auth.JWTValidator,
	opts ...Option) *Handler {
	h := &Handler{
		logger:        logger,
		verifications: verifications,
		metrics:       metrics,
		jwtValidator:  jwtValidator,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the verification routes with the chi router. Routes
// attach in a group so this surface carries its own middleware chain while
// sharing the server's root router with the other handlers.
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

		api.Group(func(r chi.Router) {
			if h.submitLimit != nil {
				r.Use(h.submitLimit)
			}
			r.Post("/api/v1/verifications", h.handleSubmit)
		})

		api.Get("/api/v1/verifications/{propertyID}", h.handleStatus)

		api.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(h.jwtValidator, h.revocations, h.logger))
			r.Post("/api/v1/verifications/{propertyID}/decision", h.handleDecide)
			r.Delete("/api/v1/verifications/{propertyID}", h.handleCancel)
			r.Get("/api/v1/review-queue", h.handleQueue)
		})
	})
}

// handleSubmit starts a verification for a property.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SubmitVerificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid submit request",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.verifications.Submit(ctx, req.PropertyID, req.Documents, req.Facts)
	if err != nil {
		h.writeError(ctx, w, "submit verification", err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, record)
}

// handleStatus returns the full record plus read-time SLA state.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.verifications.GetStatus(ctx, chi.URLParam(r, "propertyID"))
	if err != nil {
		h.writeError(ctx, w, "get verification status", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, StatusResponse{
		VerificationRecord: view.Record,
		SLAExpired:         view.SLAExpired,
	})
}

// handleDecide records the authenticated reviewer's verdict.
func (h *Handler) handleDecide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid decision request",
			"request_id", request.GetRequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.verifications.Decide(ctx, chi.URLParam(r, "propertyID"), service.Decision{
		Approved:   req.Approved,
		Notes:      req.Notes,
		FinalValue: req.FinalValue,
	})
	if err != nil {
		h.writeError(ctx, w, "decide verification", err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, record)
}

// handleCancel abandons an in-flight verification.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	propertyID := chi.URLParam(r, "propertyID")
	if err := h.verifications.Cancel(ctx, propertyID); err != nil {
		h.writeError(ctx, w, "cancel verification", err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, CancelResponse{
		PropertyID: propertyID,
		Cancelled:  true,
	})
}

// handleQueue lists records awaiting manual review, priority then age.
func (h *Handler) handleQueue(w http.ResponseWriter, r *http.Request) {
	entries := h.verifications.ListQueue(r.Context())
	httputil.WriteJSON(w, http.StatusOK, QueueResponse{
		Entries: entries,
		Count:   len(entries),
	})
}

// writeError logs and translates a service error. Failures the caller caused
// log at warn, everything else at error.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	code := dErrors.CodeOf(err)
	if dErrors.ToHTTPStatus(code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, op+" rejected",
			"request_id", request.GetRequestID(ctx),
			"code", string(code),
			"error", err.Error(),
		)
	} else {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", request.GetRequestID(ctx),
			"code", string(code),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
