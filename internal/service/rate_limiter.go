package service

import (
	"context"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/duochat/chat-server-go/internal/redis"
)

const (
	DefaultRateLimitWindow = 10 * time.Second
	DefaultRateLimitMax    = 10
)

// RateLimiter caps outbound chat messages per user with a fixed window. Text and image
// sends share one counter.
type RateLimiter interface {
	Allow(ctx context.Context, username string) bool
	Reset(ctx context.Context) error
}

type rateWindow struct {
	count       int
	windowStart time.Time
}

type MemoryRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	window  time.Duration
	max     int
	now     func() time.Time
}

type MemoryRateLimiterOption func(*MemoryRateLimiter)

func WithRateLimitClock(now func() time.Time) MemoryRateLimiterOption {
	return func(l *MemoryRateLimiter) {
		l.now = now
	}
}

func NewMemoryRateLimiter(window time.Duration, max int, opts ...MemoryRateLimiterOption) *MemoryRateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	l := &MemoryRateLimiter{
		windows: make(map[string]*rateWindow),
		window:  window,
		max:     max,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *MemoryRateLimiter) Allow(_ context.Context, username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[username]

	if !exists || now.Sub(w.windowStart) > l.window {
		l.windows[username] = &rateWindow{count: 1, windowStart: now}
		return true
	}

	if w.count >= l.max {
		return false
	}

	w.count++
	return true
}

func (l *MemoryRateLimiter) Reset(_ context.Context) error {
	l.mu.Lock()
	l.windows = make(map[string]*rateWindow)
	l.mu.Unlock()
	return nil
}

// Prune drops windows that have already elapsed and returns how many were removed.
func (l *MemoryRateLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for username, w := range l.windows {
		if now.Sub(w.windowStart) > l.window {
			delete(l.windows, username)
			removed++
		}
	}
	return removed
}

// fixedWindowScript starts the window on the first hit; the key expiry ends it.
var fixedWindowScript = goredis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local count = redis.call('INCR', key)
if count == 1 then
    redis.call('PEXPIRE', key, window)
end

if count > limit then
    return 0
end
return 1
`)

// RedisRateLimiter shares windows across processes. Redis errors allow the message.
type RedisRateLimiter struct {
	client *goredis.Client
	window time.Duration
	max    int
}

func NewRedisRateLimiter(client *goredis.Client, window time.Duration, max int) *RedisRateLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}
	if max <= 0 {
		max = DefaultRateLimitMax
	}
	return &RedisRateLimiter{client: client, window: window, max: max}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, username string) bool {
	allowed, err := fixedWindowScript.Run(
		ctx,
		l.client,
		[]string{redis.RateLimitKey(username)},
		l.window.Milliseconds(),
		l.max,
	).Int64()
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("redis rate limit check failed, allowing message")
		return true
	}
	return allowed == 1
}

func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	iter := l.client.Scan(ctx, 0, redis.RateLimitPattern(), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return l.client.Del(ctx, keys...).Err()
}
