package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a process-local sliding window limiter with the same
// lock-on-overflow behaviour as the Redis one.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	locked map[string]time.Time
	now    func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		hits:   make(map[string][]time.Time),
		locked: make(map[string]time.Time),
		now:    time.Now,
	}
}

func (l *RateLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.locked[key]; ok {
		if now.Before(until) {
			return false, until.Sub(now), nil
		}
		delete(l.locked, key)
	}

	cutoff := now.Add(-window)
	kept := l.hits[key][:0]
	for _, hit := range l.hits[key] {
		if hit.After(cutoff) {
			kept = append(kept, hit)
		}
	}

	if len(kept) >= limit {
		l.hits[key] = kept
		l.locked[key] = now.Add(window)
		return false, window, nil
	}

	l.hits[key] = append(kept, now)
	return true, 0, nil
}
