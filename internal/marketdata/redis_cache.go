package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultSnapshotKey = "aura:market:snapshot"

// RedisCache shares the snapshot between backend replicas.
// The key has no TTL so an expired snapshot is still available as a fallback.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	key    string
	logger zerolog.Logger
}

// NewRedisCache creates a Redis-backed cache
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		key:    defaultSnapshotKey,
		logger: log.With().Str("component", "redis_price_cache").Logger(),
	}
}

func (c *RedisCache) Get(ctx context.Context, now time.Time) (*Snapshot, bool) {
	snap, ok := c.Latest(ctx)
	if !ok || snap.Age(now) >= c.ttl {
		return nil, false
	}
	return snap, true
}

func (c *RedisCache) Latest(ctx context.Context) (*Snapshot, bool) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("Redis error reading snapshot")
		}
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn().Err(err).Msg("Error deserializing cached snapshot")
		return nil, false
	}
	return &snap, true
}

func (c *RedisCache) Put(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	// SET swaps the whole value, so readers get the old or the new snapshot
	return c.client.Set(ctx, c.key, data, 0).Err()
}
