// Package models defines the reviewer directory entities.
package models

import (
	"time"

	id "estateproof/pkg/domain"
)

// Reviewer is a human reviewer authorized to decide verifications.
type Reviewer struct {
	ID         id.ReviewerID `json:"reviewer_id"`
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	APIKeyHash string        `json:"-"` // Never serialize - contains bcrypt hash
	Active     bool          `json:"active"`
	CreatedAt  time.Time     `json:"created_at"`
}
