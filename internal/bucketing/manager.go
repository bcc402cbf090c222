// Package bucketing maps string keys onto a fixed number of buckets with
// murmur3, so the same key always lands in the same stripe.
package bucketing

import (
	"hash"
	"sync"

	"github.com/spaolacci/murmur3"
)

type BucketingManager struct {
	userBuckets int
	hasherPool  sync.Pool
}

// NewBucketingManager panics when buckets is not positive.
func NewBucketingManager(buckets int) *BucketingManager {
	if buckets <= 0 {
		panic("bucketing: bucket count must be positive")
	}
	return &BucketingManager{
		userBuckets: buckets,
		hasherPool: sync.Pool{
			New: func() any { return murmur3.New64() },
		},
	}
}

// GetUserBucket returns the bucket of userID in [0, buckets).
func (bm *BucketingManager) GetUserBucket(userID string) int {
	return int(bm.getHash(userID) % uint64(bm.userBuckets))
}

func (bm *BucketingManager) GetUserBuckets() int {
	return bm.userBuckets
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	_, _ = hasher.Write([]byte(key))
	return hasher.Sum64()
}
