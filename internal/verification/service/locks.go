package service

import (
	"sync"

	id "estateproof/pkg/domain"
)

// Record mutations are serialized per property using sharded mutexes.
// Instead of a single global lock, operations are distributed across N
// shards based on a hash of the property ID, reducing contention under
// concurrent load.
const numPropertyShards = 128

type propertyLocks struct {
	shards [numPropertyShards]sync.Mutex
}

// acquire locks the shard owning propertyID and returns the unlock func.
func (l *propertyLocks) acquire(propertyID id.PropertyID) func() {
	mu := &l.shards[hashPropertyID(propertyID)%numPropertyShards]
	mu.Lock()
	return mu.Unlock
}

// hashPropertyID uses FNV-1a for better hash distribution than simple
// multiply-add.
func hashPropertyID(propertyID id.PropertyID) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	s := string(propertyID)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
