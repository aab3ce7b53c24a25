// Package store persists the reviewer directory.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"estateproof/internal/reviewer/models"
	id "estateproof/pkg/domain"
	"estateproof/pkg/platform/sentinel"
)

// InMemory stores reviewers in memory. Email lookup is case-insensitive;
// the directory is small and seeded at startup, so no paging.
type InMemory struct {
	mu      sync.RWMutex
	byEmail map[string]*models.Reviewer
	byID    map[id.ReviewerID]*models.Reviewer
}

// NewInMemory constructs an empty in-memory reviewer store.
func NewInMemory() *InMemory {
	return &InMemory{
		byEmail: make(map[string]*models.Reviewer),
		byID:    make(map[id.ReviewerID]*models.Reviewer),
	}
}

func (s *InMemory) Create(_ context.Context, reviewer *models.Reviewer) error {
	key := normalizeEmail(reviewer.Email)
	if key == "" {
		return fmt.Errorf("reviewer email is required: %w", sentinel.ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[key]; exists {
		return fmt.Errorf("reviewer %s already exists: %w", key, sentinel.ErrConflict)
	}
	s.byEmail[key] = reviewer
	s.byID[reviewer.ID] = reviewer
	return nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.Reviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reviewer, ok := s.byEmail[normalizeEmail(email)]; ok {
		return reviewer, nil
	}
	return nil, fmt.Errorf("reviewer not found: %w", sentinel.ErrNotFound)
}

func (s *InMemory) FindByID(_ context.Context, reviewerID id.ReviewerID) (*models.Reviewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if reviewer, ok := s.byID[reviewerID]; ok {
		return reviewer, nil
	}
	return nil, fmt.Errorf("reviewer not found: %w", sentinel.ErrNotFound)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
