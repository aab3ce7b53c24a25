package consumer

import (
	"context"
	"log/slog"

	"estateproof/internal/platform/kafka/consumer"
)

// OpsHandler processes operational audit events from Kafka.
// Everything is best-effort: a stage telemetry event is never worth
// blocking a partition for.
type OpsHandler struct {
	store  EventStore
	logger *slog.Logger
}

// NewOpsHandler creates an ops event handler.
func NewOpsHandler(store EventStore, logger *slog.Logger) *OpsHandler {
	return &OpsHandler{
		store:  store,
		logger: logger,
	}
}

// Handle materializes an operational audit event.
func (h *OpsHandler) Handle(ctx context.Context, msg *consumer.Message) error {
	eventID, event, err := decodeEvent(msg.Value)
	if err != nil {
		h.logger.Debug("malformed ops event",
			"key", string(msg.Key),
			"error", err,
		)
		return nil
	}

	// Store errors are logged but don't prevent commit
	if err := h.store.AppendWithID(ctx, eventID, event); err != nil {
		h.logger.Debug("failed to store ops event",
			"event_id", eventID,
			"action", event.Action,
			"error", err,
		)
		return nil
	}

	return nil
}
