package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"estateproof/pkg/platform/sentinel"
)

// InMemoryStore is a content-addressed document store for tests and local
// mode. Refs are hex SHA-256 digests of the stored content.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*DocumentMeta
}

// NewInMemory creates an empty in-memory document store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		docs: make(map[string]*DocumentMeta),
	}
}

// Put stores content and returns its metadata. Storing the same content
// twice returns the original metadata; the declared content type of the
// first write wins.
func (s *InMemoryStore) Put(_ context.Context, content []byte, contentType string) (*DocumentMeta, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("document content is empty: %w", sentinel.ErrInvalidState)
	}

	digest := sha256.Sum256(content)
	ref := hex.EncodeToString(digest[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.docs[ref]; ok {
		return copyMeta(existing), nil
	}

	meta := &DocumentMeta{
		Ref:         ref,
		Size:        int64(len(content)),
		ContentType: contentType,
		StoredAt:    time.Now().UTC(),
	}
	s.docs[ref] = meta
	return copyMeta(meta), nil
}

// Preload registers metadata under its ref without content, for seeding
// known refs in local mode. A zero StoredAt is stamped with the current time.
func (s *InMemoryStore) Preload(_ context.Context, meta DocumentMeta) error {
	if meta.Ref == "" {
		return fmt.Errorf("document ref is empty: %w", sentinel.ErrInvalidState)
	}
	if meta.StoredAt.IsZero() {
		meta.StoredAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[meta.Ref] = &meta
	return nil
}

// Resolve returns a copy of the metadata for a ref.
func (s *InMemoryStore) Resolve(_ context.Context, ref string) (*DocumentMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.docs[ref]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", ref, sentinel.ErrNotFound)
	}
	return copyMeta(meta), nil
}

func copyMeta(meta *DocumentMeta) *DocumentMeta {
	c := *meta
	return &c
}
