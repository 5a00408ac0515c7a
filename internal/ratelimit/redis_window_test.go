package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestNewRedisWindow_InvalidConfig(t *testing.T) {
	_, client := newRedisClient(t)

	w, err := NewRedisWindow(client, "", 0, time.Minute)
	assert.Nil(t, w)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestRedisWindow_SharedAcrossInstances(t *testing.T) {
	_, client := newRedisClient(t)
	ctx := context.Background()

	// two replicas share one budget of 3 calls per minute
	a, err := NewRedisWindow(client, "", 3, time.Minute)
	require.NoError(t, err)
	b, err := NewRedisWindow(client, "", 3, time.Minute)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, w := range []*RedisWindow{a, b, a} {
		wait, err := w.Admit(ctx, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.Zero(t, wait)
	}

	wait, err := b.Admit(ctx, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 50*time.Second, wait, "fourth call waits for the first to age out")

	n, err := a.Len(ctx, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestRedisWindow_MatchesLocalWindow(t *testing.T) {
	_, client := newRedisClient(t)
	ctx := context.Background()

	shared, err := NewRedisWindow(client, "aura:test:limit", 2, 10*time.Second)
	require.NoError(t, err)
	local, err := NewWindow(2, 10*time.Second)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	offsets := []time.Duration{0, time.Second, 2 * time.Second, 3 * time.Second, 15 * time.Second, 40 * time.Second}
	for _, off := range offsets {
		_, want := local.Admit(now.Add(off))
		got, err := shared.Admit(ctx, now.Add(off))
		require.NoError(t, err)
		assert.Equal(t, want, got, "offset %s", off)
	}
}

func TestRedisWindow_EvictsOldReservations(t *testing.T) {
	_, client := newRedisClient(t)
	ctx := context.Background()

	w, err := NewRedisWindow(client, "", 2, 10*time.Second)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	_, err = w.Admit(ctx, now)
	require.NoError(t, err)
	_, err = w.Admit(ctx, now.Add(time.Second))
	require.NoError(t, err)

	wait, err := w.Admit(ctx, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Zero(t, wait)

	n, err := w.Len(ctx, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRedisWindow_WaitFallsBackWhenRedisIsDown(t *testing.T) {
	mr, client := newRedisClient(t)

	w, err := NewRedisWindow(client, "", 5, time.Minute)
	require.NoError(t, err)
	mr.Close()

	require.NoError(t, w.Wait(context.Background()))
	assert.Equal(t, 1, w.fallback.Len(time.Now()))
}

func TestRedisWindow_WaitHonoursContext(t *testing.T) {
	_, client := newRedisClient(t)

	w, err := NewRedisWindow(client, "", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, w.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)
}
