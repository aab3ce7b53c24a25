package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryTRL keeps revoked token ids in process memory for tests and
// single-instance deployments. Expired entries are swept lazily on write.
type MemoryTRL struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

// NewMemoryTRL constructs an empty in-memory token revocation list.
func NewMemoryTRL() *MemoryTRL {
	return &MemoryTRL{revoked: make(map[string]time.Time)}
}

func (t *MemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}

	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, expiresAt := range t.revoked {
		if expiresAt.Before(now) {
			delete(t.revoked, key)
		}
	}
	t.revoked[jti] = now.Add(ttl)
	return nil
}

func (t *MemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	t.mu.RLock()
	expiresAt, ok := t.revoked[jti]
	t.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return time.Now().Before(expiresAt), nil
}

func (t *MemoryTRL) Close() {}
