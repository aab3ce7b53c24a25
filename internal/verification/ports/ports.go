// Package ports defines shared interfaces for the verification module.
// Interfaces live here when consumed across services to avoid duplication.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks RecordStore,AuditPublisher,StageTracker,DocumentResolver

import (
	"context"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
	"estateproof/pkg/platform/audit"
)

// RecordStore persists verification records. Implementations return
// sentinel errors (pkg/platform/sentinel) for factual states: ErrConflict
// from Create on a duplicate id, ErrNotFound from Get/Update/Delete when
// the record does not exist.
type RecordStore interface {
	// Create persists a new record. Fails on duplicate property id.
	Create(ctx context.Context, record *models.VerificationRecord) error

	// Get returns a copy of the record for a property id.
	Get(ctx context.Context, propertyID id.PropertyID) (*models.VerificationRecord, error)

	// Update saves the whole record over the existing one.
	Update(ctx context.Context, record *models.VerificationRecord) error

	// Delete removes a record.
	Delete(ctx context.Context, propertyID id.PropertyID) error

	// List returns all records ordered by submission time.
	List(ctx context.Context) ([]*models.VerificationRecord, error)

	// ListByStatus returns records in a given status ordered by
	// submission time. Used to rebuild the review queue after restart.
	ListByStatus(ctx context.Context, status models.Status) ([]*models.VerificationRecord, error)
}

// AuditPublisher emits compliance-grade audit events. Callers treat a
// publish failure as a failure of the surrounding operation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.ComplianceEvent) error
}

// StageTracker records best-effort operational telemetry for pipeline
// stages. Track never blocks and never fails the caller.
type StageTracker interface {
	Track(ctx context.Context, event audit.OpsEvent)
}

// DocumentResolver answers whether a content-addressed document ref is
// known to the document store. Submit consults it when wired, rejecting
// refs it cannot resolve.
type DocumentResolver interface {
	Exists(ctx context.Context, hash string) (bool, error)
}
