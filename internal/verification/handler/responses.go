package handler

import (
	"estateproof/internal/verification/models"
	"estateproof/internal/verification/queue"
)

// StatusResponse is the record as stored plus conditions derived at read
// time. SLA expiry never mutates the record, it only shows up here.
type StatusResponse struct {
	*models.VerificationRecord
	SLAExpired bool `json:"sla_expired"`
}

// CancelResponse acknowledges an accepted cancellation.
type CancelResponse struct {
	PropertyID string `json:"property_id"`
	Cancelled  bool   `json:"cancelled"`
}

// QueueResponse lists pending reviews in working order.
type QueueResponse struct {
	Entries []queue.Entry `json:"entries"`
	Count   int           `json:"count"`
}
