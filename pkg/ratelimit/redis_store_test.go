package ratelimit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/linkguard/pkg/ratelimit"
)

func newRedisWindowStore(t *testing.T) (*ratelimit.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return ratelimit.NewRedisStore(client, "test:rl:"), mr
}

func TestRedisStore_SlidingWindow(t *testing.T) {
	t.Parallel()

	store, _ := newRedisWindowStore(t)
	window := time.Minute
	l, err := ratelimit.NewSlidingWindow(store, 3, window)
	require.NoError(t, err)

	ctx := context.Background()
	for i, want := range []int{2, 1, 0} {
		res, err := l.Check(ctx, "1.2.3.4", t0.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, want, res.Remaining)
		assert.Equal(t, t0.Add(window), res.ResetAt, "reset follows the oldest request")
	}

	now := t0.Add(5 * time.Second)
	res, err := l.Check(ctx, "1.2.3.4", now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, t0.Add(window), res.ResetAt)
	assert.Equal(t, 55*time.Second, res.RetryAfter)

	res, err = l.Check(ctx, "5.6.7.8", now)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "other keys keep their own budget")
	assert.Equal(t, 2, res.Remaining)

	// Scores at or before now-window drop out, so only the t0 request leaves.
	res, err = l.Check(ctx, "1.2.3.4", t0.Add(window+500*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, res.Allowed, "oldest request has left the window")
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, t0.Add(time.Second).Add(window), res.ResetAt)
}

func TestRedisStore_PeekDoesNotRecord(t *testing.T) {
	t.Parallel()

	store, _ := newRedisWindowStore(t)
	ctx := context.Background()

	w, err := store.Peek(ctx, "k", t0, time.Minute)
	require.NoError(t, err)
	assert.False(t, w.Recorded)
	assert.Zero(t, w.Count)
	assert.True(t, w.Oldest.IsZero())

	w, err = store.Record(ctx, "k", t0, time.Minute, 5)
	require.NoError(t, err)
	assert.True(t, w.Recorded)
	assert.Equal(t, 1, w.Count)
	assert.Equal(t, t0, w.Oldest)

	for range 3 {
		w, err = store.Peek(ctx, "k", t0.Add(time.Second), time.Minute)
		require.NoError(t, err)
		assert.False(t, w.Recorded)
		assert.Equal(t, 1, w.Count)
	}
}

func TestRedisStore_SameMillisecondCountsSeparately(t *testing.T) {
	t.Parallel()

	store, _ := newRedisWindowStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		w, err := store.Record(ctx, "k", t0, time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, i, w.Count)
	}

	w, err := store.Record(ctx, "k", t0, time.Minute, 3)
	require.NoError(t, err)
	assert.False(t, w.Recorded, "full window must not record")
	assert.Equal(t, 3, w.Count)
}

func TestRedisStore_Delete(t *testing.T) {
	t.Parallel()

	store, mr := newRedisWindowStore(t)
	ctx := context.Background()

	var now atomic.Int64
	now.Store(t0.UnixMilli())
	l, err := ratelimit.NewSlidingWindow(store, 1, time.Minute,
		ratelimit.WithClock(func() time.Time { return time.UnixMilli(now.Load()) }))
	require.NoError(t, err)

	res, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.True(t, mr.Exists("test:rl:k"))

	res, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, l.Reset(ctx, "k"))
	assert.False(t, mr.Exists("test:rl:k"))

	res, err = l.Status(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
}

func TestRedisStore_KeyExpires(t *testing.T) {
	t.Parallel()

	store, mr := newRedisWindowStore(t)
	_, err := store.Record(context.Background(), "k", t0, 30*time.Second, 5)
	require.NoError(t, err)

	ttl := mr.TTL("test:rl:k")
	assert.Equal(t, 30*time.Second, ttl)
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	_, err := ratelimit.NewRedisStore(client, "").Record(context.Background(), "k", t0, time.Minute, 1)
	assert.Error(t, err)
}
