package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	ctx := context.Background()

	t.Run("should slide the window", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		w := NewWindow(1, time.Minute)
		w.now = func() time.Time { return now }

		allowed, _ := w.Allow(ctx, "a")
		assert.True(t, allowed)
		allowed, _ = w.Allow(ctx, "a")
		assert.False(t, allowed)
		allowed, _ = w.Allow(ctx, "b")
		assert.True(t, allowed)

		now = now.Add(61 * time.Second)
		allowed, _ = w.Allow(ctx, "a")
		assert.True(t, allowed)

		now = now.Add(2 * time.Minute)
		w.Prune()
		assert.Equal(t, 0, w.Keys())
	})

	t.Run("should not count rejected requests", func(t *testing.T) {
		now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		w := NewWindow(2, time.Minute)
		w.now = func() time.Time { return now }

		for i := 0; i < 5; i++ {
			_, err := w.Allow(ctx, "a")
			require.NoError(t, err)
		}
		now = now.Add(61 * time.Second)
		allowed, _ := w.Allow(ctx, "a")
		assert.True(t, allowed)
	})
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()

	t.Run("should share the limit across limiters", func(t *testing.T) {
		key := uuid.NewString()
		first := NewRedis(client, 2, time.Minute)
		second := NewRedis(client, 2, time.Minute)

		allowed, err := first.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)
		allowed, err = second.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)
		allowed, err = first.Allow(ctx, key)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("should forget requests outside the window", func(t *testing.T) {
		key := uuid.NewString()
		now := time.Now()
		l := NewRedis(client, 1, time.Minute)
		l.now = func() time.Time { return now }

		allowed, err := l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)

		now = now.Add(2 * time.Minute)
		allowed, err = l.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("should expire idle keys", func(t *testing.T) {
		key := uuid.NewString()
		_, err := NewRedis(client, 1, time.Minute).Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, mr.Exists("fleetcompliance:ratelimit:"+key))

		mr.FastForward(2 * time.Minute)
		assert.False(t, mr.Exists("fleetcompliance:ratelimit:"+key))
	})

	t.Run("should report an unreachable redis", func(t *testing.T) {
		down := miniredis.RunT(t)
		c := redis.NewClient(&redis.Options{Addr: down.Addr(), MaxRetries: -1})
		t.Cleanup(func() { c.Close() })
		down.Close()

		_, err := NewRedis(c, 1, time.Minute).Allow(ctx, "a")
		assert.Error(t, err)
	})
}
