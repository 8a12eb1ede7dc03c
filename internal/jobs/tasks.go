package jobs

import (
	"context"
	"time"
)

type sessionSweeper interface {
	CleanupExpired() int
}

type windowPruner interface {
	Prune() int
}

type globalWiper interface {
	ExpireAll(ctx context.Context) int
}

// SessionSweepTask drops expired session records.
func SessionSweepTask(sessions sessionSweeper, interval time.Duration) Task {
	return Task{
		Name:       "expired sessions",
		Interval:   interval,
		RunOnStart: true,
		Run: func(context.Context) (int64, error) {
			return int64(sessions.CleanupExpired()), nil
		},
	}
}

// RateLimitPruneTask drops elapsed rate limit windows held in memory.
func RateLimitPruneTask(limiter windowPruner, interval time.Duration) Task {
	return Task{
		Name:     "rate limit windows",
		Interval: interval,
		Run: func(context.Context) (int64, error) {
			return int64(limiter.Prune()), nil
		},
	}
}

// GlobalWipeTask clears every conversation and session and disconnects all clients. It
// does not run at startup since the stores begin empty.
func GlobalWipeTask(wiper globalWiper, interval time.Duration) Task {
	return Task{
		Name:     "all sessions and conversations",
		Interval: interval,
		Run: func(ctx context.Context) (int64, error) {
			return int64(wiper.ExpireAll(ctx)), nil
		},
	}
}
