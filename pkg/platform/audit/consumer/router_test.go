package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"estateproof/internal/platform/kafka/consumer"
	audit "estateproof/pkg/platform/audit"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	calls int
	err   error
}

func (h *recordingHandler) Handle(context.Context, *consumer.Message) error {
	h.calls++
	return h.err
}

// recordingStore captures materialized events.
type recordingStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]audit.Event
	err    error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{events: make(map[uuid.UUID]audit.Event)}
}

func (s *recordingStore) AppendWithID(_ context.Context, eventID uuid.UUID, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events[eventID] = event
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func payloadFor(t *testing.T, eventID uuid.UUID, action, subject string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"ID":        eventID.String(),
		"Category":  string(audit.AuditEvent(action).Category()),
		"Timestamp": "2025-06-01T12:00:00Z",
		"Subject":   subject,
		"Action":    action,
	})
	require.NoError(t, err)
	return raw
}

func TestRouter_DispatchesByCategory(t *testing.T) {
	compliance := &recordingHandler{}
	ops := &recordingHandler{}

	router := NewRouter(testLogger())
	router.Register(audit.CategoryCompliance, compliance)
	router.Register(audit.CategoryOperations, ops)

	err := router.Handle(context.Background(), &consumer.Message{Topic: "audit.compliance"})
	require.NoError(t, err)
	err = router.Handle(context.Background(), &consumer.Message{Topic: "audit.operations"})
	require.NoError(t, err)
	err = router.Handle(context.Background(), &consumer.Message{Topic: "audit.operations"})
	require.NoError(t, err)

	assert.Equal(t, 1, compliance.calls)
	assert.Equal(t, 2, ops.calls)
}

func TestRouter_UnroutedTopicCommits(t *testing.T) {
	router := NewRouter(testLogger())
	router.Register(audit.CategoryCompliance, &recordingHandler{})

	err := router.Handle(context.Background(), &consumer.Message{Topic: "audit.unknown"})
	assert.NoError(t, err, "unroutable messages should commit, not redeliver")
}

func TestComplianceHandler_MaterializesEvent(t *testing.T) {
	store := newRecordingStore()
	handler := NewComplianceHandler(store, testLogger())

	eventID := uuid.New()
	msg := &consumer.Message{
		Topic: "audit.compliance",
		Key:   []byte("prop-6001"),
		Value: payloadFor(t, eventID, string(audit.EventReviewDecided), "prop-6001"),
	}

	require.NoError(t, handler.Handle(context.Background(), msg))

	event, ok := store.events[eventID]
	require.True(t, ok)
	assert.Equal(t, "prop-6001", event.Subject)
	assert.Equal(t, audit.CategoryCompliance, event.Category)
}

func TestComplianceHandler_MalformedPayloadCommits(t *testing.T) {
	store := newRecordingStore()
	handler := NewComplianceHandler(store, testLogger())

	msg := &consumer.Message{
		Topic: "audit.compliance",
		Key:   []byte("prop-6002"),
		Value: []byte("not json"),
	}

	assert.NoError(t, handler.Handle(context.Background(), msg),
		"malformed messages cannot succeed on retry")
	assert.Empty(t, store.events)
}

func TestComplianceHandler_StoreFailureRedelivers(t *testing.T) {
	store := newRecordingStore()
	store.err = errors.New("db down")
	handler := NewComplianceHandler(store, testLogger())

	msg := &consumer.Message{
		Topic: "audit.compliance",
		Key:   []byte("prop-6003"),
		Value: payloadFor(t, uuid.New(), string(audit.EventVerificationApproved), "prop-6003"),
	}

	assert.Error(t, handler.Handle(context.Background(), msg),
		"store failure must leave the offset uncommitted")
}

func TestComplianceHandler_MissingSubjectCommits(t *testing.T) {
	store := newRecordingStore()
	handler := NewComplianceHandler(store, testLogger())

	msg := &consumer.Message{
		Topic: "audit.compliance",
		Key:   []byte("x"),
		Value: payloadFor(t, uuid.New(), string(audit.EventVerificationSubmitted), ""),
	}

	assert.NoError(t, handler.Handle(context.Background(), msg))
	assert.Empty(t, store.events)
}

func TestOpsHandler_StoreFailureStillCommits(t *testing.T) {
	store := newRecordingStore()
	store.err = errors.New("db down")
	handler := NewOpsHandler(store, testLogger())

	msg := &consumer.Message{
		Topic: "audit.operations",
		Key:   []byte("prop-6004"),
		Value: payloadFor(t, uuid.New(), string(audit.EventStageCompleted), "prop-6004"),
	}

	assert.NoError(t, handler.Handle(context.Background(), msg),
		"ops events are best-effort")
}

func TestSecurityHandler_MaterializesWithCategory(t *testing.T) {
	store := newRecordingStore()
	handler := NewSecurityHandler(store, testLogger())

	eventID := uuid.New()
	msg := &consumer.Message{
		Topic: "audit.security",
		Key:   []byte(eventID.String()),
		Value: payloadFor(t, eventID, string(audit.EventReviewerLoginFailed), "reviewer-key-1"),
	}

	require.NoError(t, handler.Handle(context.Background(), msg))

	event, ok := store.events[eventID]
	require.True(t, ok)
	assert.Equal(t, audit.CategorySecurity, event.Category)
}
