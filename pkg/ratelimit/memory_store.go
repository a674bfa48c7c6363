package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/linkguard/pkg/cache"
)

// MemoryStore keeps windows in a bounded LRU. When more than maxKeys clients
// are tracked the coldest one is forgotten, which only resets that client's
// budget.
type MemoryStore struct {
	windows *cache.LRUCache[string, []time.Time]

	// widest window seen by Record, used by the idle sweep
	widest atomic.Int64

	cleanupInterval time.Duration
	onEvict         func(key string)
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
}

var _ WindowStore = (*MemoryStore)(nil)

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often idle keys are swept. Zero disables sweeping.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval >= 0 {
			s.cleanupInterval = interval
		}
	}
}

// WithOnEvict registers fn to run with the key of every client window
// dropped because maxKeys was reached. fn runs under the store lock and must
// not call back into the store.
func WithOnEvict(fn func(key string)) MemoryStoreOption {
	return func(s *MemoryStore) {
		s.onEvict = fn
	}
}

// NewMemoryStore creates a store tracking at most maxKeys clients.
// It panics if maxKeys is not positive.
func NewMemoryStore(maxKeys int, opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		windows:         cache.NewLRUCache[string, []time.Time](maxKeys),
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.onEvict != nil {
		onEvict := s.onEvict
		s.windows.OnEvict(func(key string, _ []time.Time) { onEvict(key) })
	}
	if s.cleanupInterval > 0 {
		go s.cleanupLoop()
	}

	return s
}

func (s *MemoryStore) Record(_ context.Context, key string, now time.Time, window time.Duration, limit int) (Window, error) {
	s.noteWindow(window)

	var w Window
	s.windows.Update(key, func(ts []time.Time, _ bool) []time.Time {
		ts = prune(ts, now.Add(-window))
		if len(ts) < limit {
			ts = append(ts, now)
			w.Recorded = true
		}
		w.Count = len(ts)
		if len(ts) > 0 {
			w.Oldest = ts[0]
		}
		return ts
	})
	return w, nil
}

func (s *MemoryStore) Peek(_ context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	ts, ok := s.windows.Peek(key)
	if !ok {
		return Window{}, nil
	}

	cutoff := now.Add(-window)
	var w Window
	for _, t := range ts {
		if t.After(cutoff) {
			if w.Count == 0 {
				w.Oldest = t
			}
			w.Count++
		}
	}
	return w, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.windows.Remove(key)
	return nil
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	return s.windows.Len()
}

// Sweep drops keys with no timestamps inside the widest window seen so far.
func (s *MemoryStore) Sweep(now time.Time) int {
	widest := time.Duration(s.widest.Load())
	if widest == 0 {
		return 0
	}
	cutoff := now.Add(-widest)
	return s.windows.RemoveFunc(func(_ string, ts []time.Time) bool {
		return len(ts) == 0 || !ts[len(ts)-1].After(cutoff)
	})
}

// Close stops the sweeper and drops every window. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
		s.windows.Clear()
	})
	return nil
}

func (s *MemoryStore) noteWindow(window time.Duration) {
	for {
		cur := s.widest.Load()
		if int64(window) <= cur || s.widest.CompareAndSwap(cur, int64(window)) {
			return
		}
	}
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(time.Now())
		case <-s.stopCleanup:
			return
		}
	}
}

// prune drops timestamps at or before cutoff. ts is sorted ascending.
// The result never shares the dropped prefix with ts, so a slice handed out
// by Peek is not rewritten underneath the reader.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append([]time.Time(nil), ts[i:]...)
}
