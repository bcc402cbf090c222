package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/client"
	"social-service/internal/token"
)

func newTestClient(t *testing.T) (*client.RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return client.WrapRedis(rdb), mr
}

func TestBlacklistCacheRevokeAndExpire(t *testing.T) {
	ctx := context.Background()
	rc, mr := newTestClient(t)
	cache := NewBlacklistCache(rc)

	err := cache.Revoke(ctx, token.Revocation{
		AccessTokenID:  "access-1",
		RefreshTokenID: "refresh-1",
		ExpiresAt:      time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	revoked, err := cache.IsAccessRevoked(ctx, "access-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = cache.IsRefreshRevoked(ctx, "refresh-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = cache.IsAccessRevoked(ctx, "refresh-1")
	require.NoError(t, err)
	assert.False(t, revoked, "access and refresh namespaces are separate")

	mr.FastForward(2 * time.Hour)
	revoked, err = cache.IsAccessRevoked(ctx, "access-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBlacklistCacheSkipsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	rc, mr := newTestClient(t)
	cache := NewBlacklistCache(rc)

	require.NoError(t, cache.Revoke(ctx, token.Revocation{AccessTokenID: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.Empty(t, mr.Keys())
}

func TestSessionCacheBindAndCurrent(t *testing.T) {
	ctx := context.Background()
	rc, mr := newTestClient(t)
	cache := NewSessionCache(rc)

	sess, err := cache.Current(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	accessExp := time.Now().Add(time.Hour)
	refreshExp := time.Now().Add(24 * time.Hour)
	require.NoError(t, cache.Bind(ctx, token.Session{
		RefreshTokenID:   "refresh-1",
		AccessTokenID:    "access-1",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}))

	sess, err = cache.Current(ctx, "refresh-1")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "access-1", sess.AccessTokenID)
	assert.Equal(t, accessExp.Unix(), sess.AccessExpiresAt.Unix())
	assert.Equal(t, refreshExp.Unix(), sess.RefreshExpiresAt.Unix())

	require.NoError(t, cache.Bind(ctx, token.Session{
		RefreshTokenID:   "refresh-1",
		AccessTokenID:    "access-2",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}))
	sess, err = cache.Current(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", sess.AccessTokenID)

	mr.FastForward(25 * time.Hour)
	sess, err = cache.Current(ctx, "refresh-1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestRateLimitCacheLocksAfterLimit(t *testing.T) {
	ctx := context.Background()
	rc, mr := newTestClient(t)
	cache := NewRateLimitCache(rc)

	for i := 0; i < 3; i++ {
		ok, _, err := cache.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i+1)
	}

	ok, retry, err := cache.Allow(ctx, "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	locked, err := cache.IsLocked(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, locked)

	ok, _, err = cache.Allow(ctx, "ip:5.6.7.8", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "other keys are unaffected")

	require.NoError(t, cache.Reset(ctx, "ip:1.2.3.4"))
	mr.FastForward(time.Second)
	locked, err = cache.IsLocked(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestPresenceCacheMultiSet(t *testing.T) {
	ctx := context.Background()
	rc, mr := newTestClient(t)
	cache := NewPresenceCache(rc)

	require.NoError(t, cache.Add(ctx, "u1", "c1"))
	require.NoError(t, cache.Add(ctx, "u1", "c2"))
	require.NoError(t, cache.Add(ctx, "u2", "c3"))

	conns, err := mr.Members(chatConnsPrefix + "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c1", "c2"}, conns)

	left, err := cache.Remove(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	left, err = cache.Remove(ctx, "u1", "c2")
	require.NoError(t, err)
	assert.Equal(t, 0, left)

	assert.False(t, mr.Exists(chatConnsPrefix+"u1"), "empty set is dropped")
	assert.True(t, mr.Exists(chatConnsPrefix+"u2"))
}
