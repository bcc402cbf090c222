package redis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"social-service/internal/client"
	"social-service/internal/util"
)

const chatConnsPrefix = "chat:conns:"

// removeConnScript drops a connection and deletes the user's set once empty,
// returning how many connections remain.
const removeConnScript = `
redis.call('SREM', KEYS[1], ARGV[1])
local n = redis.call('SCARD', KEYS[1])
if n == 0 then
	redis.call('DEL', KEYS[1])
end
return n
`

// PresenceCache is the shared-cache backend of the chat connection registry.
type PresenceCache struct {
	client *client.RedisClient
}

func NewPresenceCache(client *client.RedisClient) *PresenceCache {
	return &PresenceCache{client: client}
}

func (c *PresenceCache) Add(ctx context.Context, userID, connID string) error {
	if err := c.client.SAdd(ctx, chatConnsPrefix+userID, connID); err != nil {
		util.Error("Failed to register chat connection",
			zap.String("user_id", userID),
			zap.String("conn_id", connID),
			zap.Error(err))
		return fmt.Errorf("failed to register connection: %w", err)
	}
	return nil
}

func (c *PresenceCache) Remove(ctx context.Context, userID, connID string) (int, error) {
	res, err := c.client.Eval(ctx, removeConnScript, []string{chatConnsPrefix + userID}, connID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove connection: %w", err)
	}
	n, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result from remove script: %T", res)
	}
	return int(n), nil
}
