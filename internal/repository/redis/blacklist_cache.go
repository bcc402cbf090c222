package redis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"social-service/internal/client"
	"social-service/internal/token"
	"social-service/internal/util"
)

const (
	blacklistAccessPrefix  = "blacklist:access:"
	blacklistRefreshPrefix = "blacklist:refresh:"
)

// BlacklistCache is the Redis revocation store. Entries expire together with
// the tokens they block, so no purge pass is needed.
type BlacklistCache struct {
	client *client.RedisClient
	now    func() time.Time
}

func NewBlacklistCache(client *client.RedisClient) *BlacklistCache {
	return &BlacklistCache{client: client, now: time.Now}
}

func (c *BlacklistCache) Revoke(ctx context.Context, r token.Revocation) error {
	ttl := r.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		// Already expired; the signature check rejects it anyway.
		return nil
	}

	pipe := c.client.Pipeline()
	if r.AccessTokenID != "" {
		pipe.Set(ctx, blacklistAccessPrefix+r.AccessTokenID, "1", ttl)
	}
	if r.RefreshTokenID != "" {
		pipe.Set(ctx, blacklistRefreshPrefix+r.RefreshTokenID, "1", ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to blacklist token",
			zap.String("access_jti", r.AccessTokenID),
			zap.String("refresh_jti", r.RefreshTokenID),
			zap.Error(err))
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	util.Debug("Token blacklisted",
		zap.String("access_jti", r.AccessTokenID),
		zap.String("refresh_jti", r.RefreshTokenID),
		zap.Duration("ttl", ttl))
	return nil
}

func (c *BlacklistCache) IsAccessRevoked(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, blacklistAccessPrefix+id)
}

func (c *BlacklistCache) IsRefreshRevoked(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, blacklistRefreshPrefix+id)
}

func (c *BlacklistCache) exists(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return ok, nil
}
