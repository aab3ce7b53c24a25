package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"estateproof/internal/reviewer/models"
	id "estateproof/pkg/domain"
	dErrors "estateproof/pkg/domain-errors"
	"estateproof/pkg/email"
	"estateproof/pkg/secrets"
)

// SeedEntry declares one reviewer account to provision at startup.
type SeedEntry struct {
	Email  string
	APIKey string
}

// ParseSeedEntries parses comma-separated "email:apikey" pairs, the format
// the REVIEWER_SEED environment variable uses.
func ParseSeedEntries(raw string) ([]SeedEntry, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	pairs := strings.Split(raw, ",")
	entries := make([]SeedEntry, 0, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		address, apiKey, ok := strings.Cut(pair, ":")
		if !ok || address == "" || apiKey == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "reviewer seed entries must be email:apikey pairs")
		}
		entries = append(entries, SeedEntry{Email: address, APIKey: apiKey})
	}
	return entries, nil
}

// Seed provisions reviewer accounts. Reviewer ids derive from the email so
// restarts of the in-memory store keep reviewer identity stable; display
// names come from the email local part.
func Seed(s *InMemory, entries []SeedEntry) ([]*models.Reviewer, error) {
	now := time.Now()
	reviewers := make([]*models.Reviewer, 0, len(entries))
	for _, entry := range entries {
		hash, err := secrets.Hash(entry.APIKey)
		if err != nil {
			return nil, err
		}
		first, last := email.DeriveNameFromEmail(entry.Email)
		reviewer := &models.Reviewer{
			ID:         DeterministicID(entry.Email),
			Name:       first + " " + last,
			Email:      entry.Email,
			APIKeyHash: hash,
			Active:     true,
			CreatedAt:  now,
		}
		if err := s.Create(context.Background(), reviewer); err != nil {
			return nil, err
		}
		reviewers = append(reviewers, reviewer)
	}
	return reviewers, nil
}

// DeterministicID maps an email address to a stable reviewer id.
func DeterministicID(address string) id.ReviewerID {
	normalized := strings.ToLower(strings.TrimSpace(address))
	return id.ReviewerID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(normalized)))
}
