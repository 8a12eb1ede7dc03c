// Package store holds the process-wide in-memory state of the chat core: sessions,
// presence, and conversation logs. Every store is safe for concurrent use.
package store

import "time"

// Clock returns the current time. Stores take one so tests can control expiry.
type Clock func() time.Time

// Option configures a store.
type Option func(*options)

type options struct {
	clock Clock
}

func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func applyOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
