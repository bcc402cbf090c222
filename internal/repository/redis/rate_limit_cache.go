package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"social-service/internal/client"
	"social-service/internal/util"
)

const (
	rateLimitPrefix = "rate_limit:"
	tempLockPrefix  = "temp_lock:"
)

// slidingWindowScript trims entries older than the window, then admits the
// request only while the window holds fewer than limit entries.
const slidingWindowScript = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, ARGV[5])
	redis.call('PEXPIRE', key, ttl)
	return {1, current + 1}
end
return {0, current}
`

type RateLimitCache struct {
	client *client.RedisClient
	now    func() time.Time
}

func NewRateLimitCache(client *client.RedisClient) *RateLimitCache {
	return &RateLimitCache{client: client, now: time.Now}
}

// Allow records one hit for key. Once limit is exceeded the key is locked for
// a full window and every call reports how long the lock has left.
func (c *RateLimitCache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	locked, err := c.IsLocked(ctx, key)
	if err != nil {
		return false, 0, err
	}
	if locked {
		ttl, err := c.client.TTL(ctx, tempLockPrefix+key)
		if err != nil {
			return false, 0, fmt.Errorf("failed to read lock ttl: %w", err)
		}
		return false, max(ttl, 0), nil
	}

	allowed, count, err := c.SlidingWindow(ctx, key, limit, window)
	if err != nil {
		return false, 0, err
	}
	if allowed {
		return true, 0, nil
	}

	if err := c.SetTemporaryLock(ctx, key, window); err != nil {
		return false, 0, err
	}
	util.Warn("Rate limit exceeded, key locked",
		zap.String("key", key),
		zap.Int("count", count),
		zap.Duration("lock", window))
	return false, window, nil
}

func (c *RateLimitCache) SlidingWindow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	now := c.now().UnixMilli()
	windowStart := now - window.Milliseconds()

	result, err := c.client.Eval(ctx, slidingWindowScript, []string{rateLimitPrefix + key},
		now, windowStart, limit, window.Milliseconds(), strconv.FormatInt(now, 10)+"-"+uuid.NewString())
	if err != nil {
		util.Error("Failed to execute sliding window rate limit",
			zap.String("key", key),
			zap.Int("limit", limit),
			zap.Duration("window", window),
			zap.Error(err))
		return false, 0, fmt.Errorf("failed to execute sliding window rate limit: %w", err)
	}

	values, ok := result.([]any)
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected result format from sliding window script")
	}
	flag, ok1 := values[0].(int64)
	count, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return false, 0, fmt.Errorf("unexpected result types from sliding window script")
	}

	return flag == 1, int(count), nil
}

func (c *RateLimitCache) SetTemporaryLock(ctx context.Context, key string, ttl time.Duration) error {
	if _, err := c.client.SetNX(ctx, tempLockPrefix+key, "locked", ttl); err != nil {
		util.Error("Failed to set temporary lock", zap.String("key", key), zap.Duration("ttl", ttl), zap.Error(err))
		return fmt.Errorf("failed to set temporary lock: %w", err)
	}
	return nil
}

func (c *RateLimitCache) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := c.client.Exists(ctx, tempLockPrefix+key)
	if err != nil {
		return false, fmt.Errorf("failed to check lock: %w", err)
	}
	return exists, nil
}

func (c *RateLimitCache) Reset(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, rateLimitPrefix+key, tempLockPrefix+key); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}
