package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"social-service/internal/client"
	"social-service/internal/token"
	"social-service/internal/util"
)

const refreshSessionPrefix = "refresh_session:"

const (
	fieldAccessID   = "access_id"
	fieldAccessExp  = "access_exp"
	fieldRefreshExp = "refresh_exp"
)

// SessionCache remembers which access token was last minted from each refresh
// token. Keys live exactly as long as the refresh token.
type SessionCache struct {
	client *client.RedisClient
	now    func() time.Time
}

func NewSessionCache(client *client.RedisClient) *SessionCache {
	return &SessionCache{client: client, now: time.Now}
}

func (c *SessionCache) Bind(ctx context.Context, s token.Session) error {
	ttl := s.RefreshExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	key := refreshSessionPrefix + s.RefreshTokenID
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldAccessID, s.AccessTokenID,
		fieldAccessExp, s.AccessExpiresAt.Unix(),
		fieldRefreshExp, s.RefreshExpiresAt.Unix(),
	)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("Failed to bind refresh session",
			zap.String("refresh_jti", s.RefreshTokenID),
			zap.Error(err))
		return fmt.Errorf("failed to bind refresh session: %w", err)
	}

	util.Debug("Refresh session bound",
		zap.String("refresh_jti", s.RefreshTokenID),
		zap.String("access_jti", s.AccessTokenID))
	return nil
}

// Current returns nil without error when no session is bound.
func (c *SessionCache) Current(ctx context.Context, refreshTokenID string) (*token.Session, error) {
	fields, err := c.client.HGetAll(ctx, refreshSessionPrefix+refreshTokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to get refresh session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	accessExp, err := strconv.ParseInt(fields[fieldAccessExp], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh session %s: %w", refreshTokenID, err)
	}
	refreshExp, err := strconv.ParseInt(fields[fieldRefreshExp], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh session %s: %w", refreshTokenID, err)
	}

	return &token.Session{
		RefreshTokenID:   refreshTokenID,
		AccessTokenID:    fields[fieldAccessID],
		AccessExpiresAt:  time.Unix(accessExp, 0),
		RefreshExpiresAt: time.Unix(refreshExp, 0),
	}, nil
}
