package admin

import (
	"time"

	"estateproof/pkg/platform/audit"
)

// AuditEventView is the HTTP response DTO for one stored audit event.
type AuditEventView struct {
	Timestamp  time.Time `json:"timestamp"`
	Category   string    `json:"category"`
	Subject    string    `json:"subject"`
	Action     string    `json:"action"`
	Stage      string    `json:"stage,omitempty"`
	Decision   string    `json:"decision,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ReviewerID string    `json:"reviewer_id,omitempty"`
	Client     string    `json:"client,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
}

// NewAuditEventView maps a stored audit event to its admin view.
func NewAuditEventView(e audit.Event) *AuditEventView {
	view := &AuditEventView{
		Timestamp: e.Timestamp,
		Category:  string(e.Category),
		Subject:   e.Subject,
		Action:    e.Action,
		Stage:     e.Stage,
		Decision:  e.Decision,
		Reason:    e.Reason,
		Client:    e.Client,
		RequestID: e.RequestID,
	}
	if !e.ReviewerID.IsNil() {
		view.ReviewerID = e.ReviewerID.String()
	}
	return view
}

// RecentEventsResponse wraps the list of recent events for HTTP response.
type RecentEventsResponse struct {
	Events []*AuditEventView `json:"events"`
	Total  int               `json:"total"`
}

// RevokeTokenRequest asks for a token id to be blacklisted.
type RevokeTokenRequest struct {
	TokenID string `json:"token_id"`
}

// RevokeTokenResponse confirms a revocation.
type RevokeTokenResponse struct {
	TokenID   string    `json:"token_id"`
	RevokedAt time.Time `json:"revoked_at"`
}

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse reports per-dependency probe results.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
