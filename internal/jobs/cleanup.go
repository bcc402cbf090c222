package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type RejectedFriendshipStore interface {
	DeleteRejectedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupRejectedFriendships deletes rejected requests older than retention.
func CleanupRejectedFriendships(store RejectedFriendshipStore, retention, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "cleanup-rejected-friendships",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := store.DeleteRejectedBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				return fmt.Errorf("delete rejected friendships: %w", err)
			}
			if n > 0 {
				logger.Info("Rejected friendships removed", zap.Int64("count", n))
			}
			return nil
		},
	}
}

type ExpiredRevocationStore interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// PurgeExpiredRevocations is only needed for stores without native expiry.
func PurgeExpiredRevocations(store ExpiredRevocationStore, interval time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "purge-expired-revocations",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				return err
			}
			logger.Debug("Expired revocations purged", zap.Int64("count", n))
			return nil
		},
	}
}
