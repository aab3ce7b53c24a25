// Package records persists verification records. The memory store backs
// unit tests and single-node deployments; postgres and redis back
// production. All backends hand out deep copies and report factual states
// through pkg/platform/sentinel errors.
package records

import (
	"context"
	"slices"
	"sync"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
	"estateproof/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map guarded by an RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.PropertyID]*models.VerificationRecord
}

// NewInMemory returns an empty in-memory record store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.PropertyID]*models.VerificationRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.PropertyID]; exists {
		return sentinel.ErrConflict
	}
	s.records[record.PropertyID] = record.Clone()
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, propertyID id.PropertyID) (*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[propertyID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) Update(_ context.Context, record *models.VerificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.PropertyID]; !ok {
		return sentinel.ErrNotFound
	}
	s.records[record.PropertyID] = record.Clone()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, propertyID id.PropertyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[propertyID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, propertyID)
	return nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.VerificationRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	sortRecords(out)
	return out, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.Status) ([]*models.VerificationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.VerificationRecord, 0)
	for _, record := range s.records {
		if record.Status == status {
			out = append(out, record.Clone())
		}
	}
	sortRecords(out)
	return out, nil
}

// sortRecords orders by submission time with property id as tiebreak,
// matching the postgres ordering.
func sortRecords(records []*models.VerificationRecord) {
	slices.SortFunc(records, func(a, b *models.VerificationRecord) int {
		if c := a.SubmittedAt.Compare(b.SubmittedAt); c != 0 {
			return c
		}
		if a.PropertyID < b.PropertyID {
			return -1
		}
		if a.PropertyID > b.PropertyID {
			return 1
		}
		return 0
	})
}
