package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	id "estateproof/pkg/domain"
	audit "estateproof/pkg/platform/audit"

	"github.com/google/uuid"
)

// eventPayload matches the JSON structure written by the postgres outbox store.
type eventPayload struct {
	ID         string `json:"ID"`
	Category   string `json:"Category"`
	Timestamp  string `json:"Timestamp"`
	ReviewerID string `json:"ReviewerID"`
	Subject    string `json:"Subject"`
	Action     string `json:"Action"`
	Stage      string `json:"Stage"`
	Decision   string `json:"Decision"`
	Reason     string `json:"Reason"`
	RequestID  string `json:"RequestID"`
	Client     string `json:"Client"`
}

// decodeEvent parses a Kafka message into the event ID and audit event.
// The message key carries the aggregate ID for partitioning; the event ID
// lives inside the payload.
func decodeEvent(value []byte) (uuid.UUID, audit.Event, error) {
	var payload eventPayload
	if err := json.Unmarshal(value, &payload); err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}

	eventID, err := uuid.Parse(payload.ID)
	if err != nil {
		return uuid.Nil, audit.Event{}, fmt.Errorf("parse event ID %q: %w", payload.ID, err)
	}

	event := audit.Event{
		Category:  audit.EventCategory(payload.Category),
		Subject:   payload.Subject,
		Action:    payload.Action,
		Stage:     payload.Stage,
		Decision:  payload.Decision,
		Reason:    payload.Reason,
		RequestID: payload.RequestID,
		Client:    payload.Client,
	}

	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			event.Timestamp = ts
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if payload.ReviewerID != "" {
		if rid, err := uuid.Parse(payload.ReviewerID); err == nil {
			event.ReviewerID = id.ReviewerID(rid)
		}
	}

	return eventID, event, nil
}
