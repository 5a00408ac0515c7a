package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultRedisKey holds the reservations for the CoinGecko budget
const DefaultRedisKey = "aura:ratelimit:coingecko"

// admitScript evicts expired reservations, computes the pause for the next
// call and records the reservation at now+wait, all in one round trip.
// KEYS[1] sorted set of reservations scored in unix ms
// ARGV now_ms, size_ms, quota, member
var admitScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local size = tonumber(ARGV[2])
local quota = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - size)

local n = redis.call('ZCARD', KEYS[1])
local wait = 0
if n >= quota then
	local kth = redis.call('ZRANGE', KEYS[1], n - quota, n - quota, 'WITHSCORES')
	wait = size - (now - tonumber(kth[2]))
	if wait < 0 then
		wait = 0
	end
end

redis.call('ZADD', KEYS[1], now + wait, ARGV[4])
redis.call('PEXPIRE', KEYS[1], size + wait)
return wait
`)

// RedisWindow is a rolling-window limiter whose reservations live in Redis,
// so every replica pointed at the same key draws from one budget. When Redis
// fails the call is admitted through a process-local Window instead.
type RedisWindow struct {
	client   *redis.Client
	key      string
	quota    int
	size     time.Duration
	fallback *Window
	logger   zerolog.Logger
}

// NewRedisWindow creates a shared rolling-window limiter stored under key
func NewRedisWindow(client *redis.Client, key string, quota int, size time.Duration) (*RedisWindow, error) {
	fallback, err := NewWindow(quota, size)
	if err != nil {
		return nil, err
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisWindow{
		client:   client,
		key:      key,
		quota:    quota,
		size:     size,
		fallback: fallback,
		logger:   log.With().Str("component", "redis_rate_limiter").Logger(),
	}, nil
}

// Admit reserves the next shared slot for a call made at now and returns how
// long the caller has to pause before issuing it.
func (w *RedisWindow) Admit(ctx context.Context, now time.Time) (time.Duration, error) {
	waitMs, err := admitScript.Run(ctx, w.client, []string{w.key},
		now.UnixMilli(), w.size.Milliseconds(), w.quota, uuid.NewString()).Int64()
	if err != nil {
		return 0, fmt.Errorf("admit %s: %w", w.key, err)
	}
	return time.Duration(waitMs) * time.Millisecond, nil
}

// Wait blocks the calling goroutine until a shared slot is available
func (w *RedisWindow) Wait(ctx context.Context) error {
	wait, err := w.Admit(ctx, time.Now())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.logger.Warn().Err(err).Msg("Redis limiter unavailable, using local window")
		return w.fallback.Wait(ctx)
	}
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of reservations still inside the window at now
func (w *RedisWindow) Len(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-w.size).UnixMilli()
	n, err := w.client.ZCount(ctx, w.key, fmt.Sprintf("(%d", cutoff), "+inf").Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
