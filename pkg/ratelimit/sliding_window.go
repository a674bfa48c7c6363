package ratelimit

import (
	"context"
	"time"
)

// SlidingWindow counts each key's requests inside a trailing window and
// denies once the count reaches the limit.
type SlidingWindow struct {
	store  WindowStore
	limit  int
	window time.Duration
	clock  func() time.Time
}

var _ Limiter = (*SlidingWindow)(nil)

// SlidingWindowOption configures a SlidingWindow.
type SlidingWindowOption func(*SlidingWindow)

// WithClock sets the time source used by Allow and Status.
func WithClock(clock func() time.Time) SlidingWindowOption {
	return func(sw *SlidingWindow) {
		if clock != nil {
			sw.clock = clock
		}
	}
}

func NewSlidingWindow(store WindowStore, limit int, window time.Duration, opts ...SlidingWindowOption) (*SlidingWindow, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	if window <= 0 {
		return nil, ErrInvalidWindow
	}

	sw := &SlidingWindow{
		store:  store,
		limit:  limit,
		window: window,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(sw)
	}
	return sw, nil
}

// Allow records a request for key at the limiter's current time.
func (sw *SlidingWindow) Allow(ctx context.Context, key string) (*Result, error) {
	return sw.Check(ctx, key, sw.clock())
}

// Check records a request for key at now.
func (sw *SlidingWindow) Check(ctx context.Context, key string, now time.Time) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	w, err := sw.store.Record(ctx, key, now, sw.window, sw.limit)
	if err != nil {
		return nil, err
	}
	return sw.result(w, w.Recorded, now), nil
}

// Status reports the state for key without counting a request.
func (sw *SlidingWindow) Status(ctx context.Context, key string) (*Result, error) {
	if key == "" {
		return nil, ErrKeyRequired
	}

	now := sw.clock()
	w, err := sw.store.Peek(ctx, key, now, sw.window)
	if err != nil {
		return nil, err
	}
	return sw.result(w, w.Count < sw.limit, now), nil
}

// Reset clears the window for key.
func (sw *SlidingWindow) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return sw.store.Delete(ctx, key)
}

func (sw *SlidingWindow) result(w Window, allowed bool, now time.Time) *Result {
	res := &Result{
		Allowed:   allowed,
		Limit:     sw.limit,
		Remaining: max(0, sw.limit-w.Count),
		ResetAt:   now.Add(sw.window),
	}
	if w.Count > 0 {
		res.ResetAt = w.Oldest.Add(sw.window)
	}
	if !allowed {
		res.RetryAfter = max(0, res.ResetAt.Sub(now))
	}
	return res
}
