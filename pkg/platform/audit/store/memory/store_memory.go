package memory

import (
	"context"
	"sync"

	audit "estateproof/pkg/platform/audit"
)

type InMemoryStore struct {
	mu        sync.RWMutex
	bySubject map[string][]audit.Event
	all       []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{bySubject: make(map[string][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySubject = make(map[string][]audit.Event)
	s.all = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySubject[event.Subject] = append(s.bySubject[event.Subject], event)
	s.all = append(s.all, event)
	return nil
}

// ListBySubject returns events for a subject in emission order.
func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.bySubject[subject]...), nil
}

// ListRecent returns the most recent N events, newest first, matching the
// ordering of the postgres store.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.all) {
		limit = len(s.all)
	}

	result := make([]audit.Event, 0, limit)
	for i := len(s.all) - 1; i >= len(s.all)-limit; i-- {
		result = append(result, s.all[i])
	}
	return result, nil
}
