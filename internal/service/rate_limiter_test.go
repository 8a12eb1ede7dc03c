package service

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("allows exactly max within window", func(t *testing.T) {
		l := NewMemoryRateLimiter(10*time.Second, 10, WithRateLimitClock(clock))
		for i := 0; i < 10; i++ {
			assert.True(t, l.Allow(ctx, "alice"), "message %d", i+1)
		}
		assert.False(t, l.Allow(ctx, "alice"))
	})

	t.Run("new window after window elapses", func(t *testing.T) {
		current := now
		l := NewMemoryRateLimiter(10*time.Second, 2, WithRateLimitClock(func() time.Time { return current }))

		assert.True(t, l.Allow(ctx, "bob"))
		assert.True(t, l.Allow(ctx, "bob"))
		assert.False(t, l.Allow(ctx, "bob"))

		current = now.Add(10 * time.Second)
		assert.False(t, l.Allow(ctx, "bob"), "boundary is still inside the window")

		current = now.Add(10*time.Second + time.Millisecond)
		assert.True(t, l.Allow(ctx, "bob"))
	})

	t.Run("users are independent", func(t *testing.T) {
		l := NewMemoryRateLimiter(10*time.Second, 1, WithRateLimitClock(clock))
		assert.True(t, l.Allow(ctx, "alice"))
		assert.False(t, l.Allow(ctx, "alice"))
		assert.True(t, l.Allow(ctx, "bob"))
	})

	t.Run("reset clears windows", func(t *testing.T) {
		l := NewMemoryRateLimiter(10*time.Second, 1, WithRateLimitClock(clock))
		assert.True(t, l.Allow(ctx, "alice"))
		require.NoError(t, l.Reset(ctx))
		assert.True(t, l.Allow(ctx, "alice"))
	})

	t.Run("prune removes elapsed windows", func(t *testing.T) {
		current := now
		l := NewMemoryRateLimiter(10*time.Second, 5, WithRateLimitClock(func() time.Time { return current }))
		l.Allow(ctx, "alice")
		current = now.Add(5 * time.Second)
		l.Allow(ctx, "bob")

		current = now.Add(12 * time.Second)
		assert.Equal(t, 1, l.Prune())
		assert.Equal(t, 0, l.Prune())
	})

	t.Run("defaults for non-positive settings", func(t *testing.T) {
		l := NewMemoryRateLimiter(0, 0)
		assert.Equal(t, DefaultRateLimitWindow, l.window)
		assert.Equal(t, DefaultRateLimitMax, l.max)
	})
}

func newTestRedis(t *testing.T) *goredis.Client {
	t.Helper()

	opts, err := goredis.ParseURL("redis://localhost:6379/15") // DB 15 for tests
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skip("Redis not available for testing")
	}

	client.FlushDB(context.Background())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisRateLimiter(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	t.Run("allows exactly max within window", func(t *testing.T) {
		l := NewRedisRateLimiter(client, 10*time.Second, 3)
		for i := 0; i < 3; i++ {
			assert.True(t, l.Allow(ctx, "user1"), "message %d", i+1)
		}
		assert.False(t, l.Allow(ctx, "user1"))
	})

	t.Run("window expires", func(t *testing.T) {
		l := NewRedisRateLimiter(client, 200*time.Millisecond, 1)
		assert.True(t, l.Allow(ctx, "user2"))
		assert.False(t, l.Allow(ctx, "user2"))

		time.Sleep(300 * time.Millisecond)
		assert.True(t, l.Allow(ctx, "user2"))
	})

	t.Run("reset clears every window", func(t *testing.T) {
		l := NewRedisRateLimiter(client, 10*time.Second, 1)
		assert.True(t, l.Allow(ctx, "user3"))
		assert.False(t, l.Allow(ctx, "user3"))

		require.NoError(t, l.Reset(ctx))
		assert.True(t, l.Allow(ctx, "user3"))
	})
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	l := NewRedisRateLimiter(client, time.Second, 1)
	assert.True(t, l.Allow(context.Background(), "alice"))
	assert.True(t, l.Allow(context.Background(), "alice"))
}
