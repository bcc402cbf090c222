package bucketing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetUserBucketIsStableAndInRange(t *testing.T) {
	bm := NewBucketingManager(16)

	seen := make(map[int]bool)
	for i := range 1000 {
		id := fmt.Sprintf("user-%d", i)
		b := bm.GetUserBucket(id)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 16)
		assert.Equal(t, b, bm.GetUserBucket(id))
		seen[b] = true
	}
	assert.Len(t, seen, 16, "1000 keys should touch every bucket")
}

func TestNewBucketingManagerRejectsZero(t *testing.T) {
	assert.Panics(t, func() { NewBucketingManager(0) })
}
