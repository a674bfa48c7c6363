package ratelimit

import (
	"context"
	"time"
)

// Result describes a single rate limit decision.
type Result struct {
	Allowed bool

	// Limit is the ceiling of requests per window.
	Limit int

	// Remaining is how many more requests fit in the current window.
	Remaining int

	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time

	// RetryAfter is ResetAt minus the decision time when denied, else zero.
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Window is the state of one key after a store operation.
type Window struct {
	// Recorded is true when this call appended a timestamp.
	Recorded bool

	// Count is the number of timestamps inside the window after the call.
	Count int

	// Oldest is the earliest timestamp still inside the window. Zero when Count is 0.
	Oldest time.Time
}

// WindowStore keeps the per-key timestamp lists.
type WindowStore interface {
	// Record drops timestamps at or before now-window and then appends now
	// if fewer than limit remain. The whole step is atomic per key.
	Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Window, error)

	// Peek reports the window state at now without appending.
	Peek(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error)

	// Delete forgets key.
	Delete(ctx context.Context, key string) error
}

// Config holds limiter settings.
type Config struct {
	Limit   int           `env:"RATE_LIMIT" envDefault:"10"`
	Window  time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	MaxKeys int           `env:"RATE_LIMIT_MAX_KEYS" envDefault:"10000"`
}
