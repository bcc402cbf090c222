package chat

import (
	"context"
	"sync"

	"social-service/internal/bucketing"
)

// Registry maps a user to the set of its open connections. Implementations
// must be safe for concurrent use.
type Registry interface {
	Add(ctx context.Context, userID, connID string) error
	// Remove drops connID and returns how many connections userID has left.
	// The user's entry is gone once that reaches zero.
	Remove(ctx context.Context, userID, connID string) (int, error)
}

type registryShard struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{}
}

// MemoryRegistry stripes users across shards by their murmur3 bucket so
// unrelated connects do not contend on one lock.
type MemoryRegistry struct {
	buckets *bucketing.BucketingManager
	shards  []*registryShard
}

func NewMemoryRegistry(buckets *bucketing.BucketingManager) *MemoryRegistry {
	shards := make([]*registryShard, buckets.GetUserBuckets())
	for i := range shards {
		shards[i] = &registryShard{conns: make(map[string]map[string]struct{})}
	}
	return &MemoryRegistry{buckets: buckets, shards: shards}
}

func (r *MemoryRegistry) shard(userID string) *registryShard {
	return r.shards[r.buckets.GetUserBucket(userID)]
}

func (r *MemoryRegistry) Add(_ context.Context, userID, connID string) error {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		s.conns[userID] = set
	}
	set[connID] = struct{}{}
	return nil
}

func (r *MemoryRegistry) Remove(_ context.Context, userID, connID string) (int, error) {
	s := r.shard(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.conns[userID]
	if !ok {
		return 0, nil
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(s.conns, userID)
	}
	return len(set), nil
}
