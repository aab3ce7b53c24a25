package handler

import "estateproof/internal/verification/models"

// SubmitVerificationRequest is the payload for starting a verification.
// Documents must already exist in the document store; the service rejects
// unknown hashes.
type SubmitVerificationRequest struct {
	PropertyID string               `json:"property_id"`
	Documents  []models.DocumentRef `json:"documents"`
	Facts      models.PropertyFacts `json:"declared_facts"`
}

// DecisionRequest is a reviewer's verdict on a queued verification.
// FinalValue is optional on approval; when zero the oracle estimate stands.
type DecisionRequest struct {
	Approved   bool    `json:"approved"`
	Notes      string  `json:"notes"`
	FinalValue float64 `json:"final_value,omitempty"`
}
