// Package queue holds the in-memory review queue. Records enter when they
// reach manual review and leave on decision; ordering is priority first,
// oldest first within a priority.
package queue

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"estateproof/internal/verification/models"
	id "estateproof/pkg/domain"
)

// Entry is one queued record awaiting a reviewer.
type Entry struct {
	PropertyID             id.PropertyID   `json:"property_id"`
	Priority               models.Priority `json:"priority"`
	EnqueuedAt             time.Time       `json:"enqueued_at"`
	ExpectedCompletionTime time.Time       `json:"expected_completion_time"`
}

// SLAExpired reports whether the entry has outlived its review window.
func (e Entry) SLAExpired(now time.Time) bool {
	return now.After(e.ExpectedCompletionTime)
}

// Queue is safe for concurrent use. The pipeline goroutines enqueue while
// reviewers list and decide.
type Queue struct {
	mu      sync.RWMutex
	entries map[id.PropertyID]Entry
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{entries: make(map[id.PropertyID]Entry)}
}

// Enqueue adds an entry, replacing any stale entry under the same id so a
// rebuilt queue never holds duplicates.
func (q *Queue) Enqueue(entry Entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries[entry.PropertyID] = entry
}

// Remove drops the entry for a property id. Removing an id that is not
// queued is a no-op; the return value reports whether anything was removed.
func (q *Queue) Remove(propertyID id.PropertyID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.entries[propertyID]; !ok {
		return false
	}
	delete(q.entries, propertyID)
	return true
}

// Contains reports whether a property id is queued.
func (q *Queue) Contains(propertyID id.PropertyID) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.entries[propertyID]
	return ok
}

// List returns entries ordered by priority, then age, then property id as
// a stable tiebreak.
func (q *Queue) List() []Entry {
	q.mu.RLock()
	out := make([]Entry, 0, len(q.entries))
	for _, entry := range q.entries {
		out = append(out, entry)
	}
	q.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(b.Priority.Rank(), a.Priority.Rank()); c != 0 {
			return c
		}
		if c := a.EnqueuedAt.Compare(b.EnqueuedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.PropertyID, b.PropertyID)
	})
	return out
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Depths returns the queue depth per priority, including zero rows for
// idle priorities so gauges reset cleanly.
func (q *Queue) Depths() map[models.Priority]int {
	depths := map[models.Priority]int{
		models.PriorityStandard: 0,
		models.PriorityUrgent:   0,
		models.PriorityCritical: 0,
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, entry := range q.entries {
		depths[entry.Priority]++
	}
	return depths
}
