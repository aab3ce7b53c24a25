package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"estateproof/internal/platform/kafka/consumer"
	audit "estateproof/pkg/platform/audit"

	"github.com/google/uuid"
)

// EventStore materializes audit events for querying. AppendWithID must be
// idempotent: the consumer delivers at least once.
type EventStore interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// ComplianceHandler processes compliance audit events from Kafka.
// Store failures propagate so the message is redelivered: compliance
// events must not be lost.
type ComplianceHandler struct {
	store  EventStore
	logger *slog.Logger
}

// NewComplianceHandler creates a compliance event handler.
func NewComplianceHandler(store EventStore, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// Handle materializes a compliance audit event.
func (h *ComplianceHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, event, err := decodeEvent(msg.Value)
	if err != nil {
		// Malformed messages cannot succeed on retry; commit and raise the alarm.
		h.logger.Error("CRITICAL: malformed compliance event",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	// Strict validation for compliance events
	if event.Subject == "" {
		h.logger.Error("CRITICAL: compliance event missing subject",
			"event_id", eventID,
			"action", event.Action,
		)
		return nil
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store compliance event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store compliance event: %w", err)
	}

	h.logger.Debug("stored compliance event",
		"event_id", eventID,
		"action", event.Action,
		"subject", event.Subject,
	)

	return nil
}
