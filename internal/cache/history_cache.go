package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"flagstone-assistant/internal/model"
)

const (
	recentKey = "assistant:history:recent"
	dirtyKey  = "assistant:history:dirty"
)

// HistoryCache keeps the most recent exchanges in Redis. The dirty marker
// counts exchanges published but not yet persisted; while it is positive the
// cached list is bypassed and not refilled. The marker expires after
// dirtyMarkerTTL so a lost delivery cannot pin it.
type HistoryCache struct {
	client         *redisv9.Client
	historyTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewHistoryCache(client *redisv9.Client, historyTTL, dirtyMarkerTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &HistoryCache{
		client:         client,
		historyTTL:     historyTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *HistoryCache) GetRecent(ctx context.Context) ([]model.Exchange, bool, error) {
	raw, err := c.client.Get(ctx, recentKey).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var exchanges []model.Exchange
	if err := json.Unmarshal([]byte(raw), &exchanges); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return exchanges, true, nil
}

func (c *HistoryCache) SetRecent(ctx context.Context, exchanges []model.Exchange) error {
	payload, err := json.Marshal(exchanges)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, recentKey, payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

// releaseDirty decrements the pending count and drops the key at zero.
var releaseDirty = redisv9.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n <= 0 then
	redis.call("DEL", KEYS[1])
end
return n
`)

// MarkDirty drops the cached list and counts one more pending exchange.
func (c *HistoryCache) MarkDirty(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Incr(ctx, dirtyKey)
		pipe.Expire(ctx, dirtyKey, c.dirtyMarkerTTL)
		pipe.Del(ctx, recentKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis mark history dirty failed: %w", err)
	}
	return nil
}

// ClearDirty releases one pending exchange once its delivery is handled.
func (c *HistoryCache) ClearDirty(ctx context.Context) error {
	if err := releaseDirty.Run(ctx, c.client, []string{dirtyKey}).Err(); err != nil {
		return fmt.Errorf("redis clear dirty marker failed: %w", err)
	}
	if err := c.client.Del(ctx, recentKey).Err(); err != nil {
		return fmt.Errorf("redis drop cached history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) IsDirty(ctx context.Context) (bool, error) {
	exists, err := c.client.Exists(ctx, dirtyKey).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}
