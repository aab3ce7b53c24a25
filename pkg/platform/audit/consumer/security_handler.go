package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"estateproof/internal/platform/kafka/consumer"
	audit "estateproof/pkg/platform/audit"
)

// SecurityHandler processes security audit events from Kafka.
// Store failures propagate for redelivery: forensic evidence should
// survive transient store outages.
type SecurityHandler struct {
	store  EventStore
	logger *slog.Logger
}

// NewSecurityHandler creates a security event handler.
func NewSecurityHandler(store EventStore, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		store:  store,
		logger: logger,
	}
}

// Handle materializes a security audit event.
func (h *SecurityHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, event, err := decodeEvent(msg.Value)
	if err != nil {
		h.logger.Warn("malformed security event",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	if event.Category == "" {
		event.Category = audit.CategorySecurity
	}

	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Error("failed to store security event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("store security event: %w", err)
	}

	h.logger.Debug("stored security event",
		"event_id", eventID,
		"action", event.Action,
	)

	return nil
}
