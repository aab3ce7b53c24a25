package docstore

import (
	"context"
	"sync"
	"time"
)

// CachedResolver is a read-through TTL cache in front of another Resolver.
// Only successful resolutions are cached; a miss is re-asked every time so
// a document uploaded moments later is visible immediately. Entries expire
// lazily on access.
type CachedResolver struct {
	mu      sync.RWMutex
	next    Resolver
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	meta      DocumentMeta
	expiresAt time.Time
}

// NewCachedResolver wraps next with a TTL cache.
func NewCachedResolver(next Resolver, ttl time.Duration) *CachedResolver {
	return &CachedResolver{
		next:    next,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Resolve answers from cache when fresh, otherwise asks the underlying
// resolver and remembers a successful answer.
func (c *CachedResolver) Resolve(ctx context.Context, ref string) (*DocumentMeta, error) {
	c.mu.RLock()
	entry, ok := c.entries[ref]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		meta := entry.meta
		return &meta, nil
	}

	meta, err := c.next.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[ref] = cacheEntry{meta: *meta, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return meta, nil
}

// Len returns the number of cached entries, expired ones included.
func (c *CachedResolver) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
