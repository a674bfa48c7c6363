package nonce

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps consumption records in process memory. Live records are
// never evicted before they expire. Use it for single-instance deployments
// and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Record
	cfg     config

	stopCleanup chan struct{}
	cleanupOnce sync.Once
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store and starts the expiry sweeper unless the
// cleanup interval is zero.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		entries:     make(map[string]Record),
		cfg:         applyOptions(opts),
		stopCleanup: make(chan struct{}),
	}

	if s.cfg.cleanupInterval > 0 {
		go s.cleanupLoop()
	}

	return s
}

// Claim inserts the record unless a live one already exists.
func (s *MemoryStore) Claim(ctx context.Context, nonce, subjectID string, now time.Time) (bool, error) {
	if nonce == "" {
		return false, ErrEmptyNonce
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	rec := newRecord(nonce, subjectID, now, s.cfg.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[rec.Key]; ok && now.Before(existing.ExpiresAt) {
		return false, nil
	}
	s.entries[rec.Key] = rec
	return true, nil
}

func (s *MemoryStore) IsClaimed(ctx context.Context, nonce string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.entries[Key(nonce)]
	return ok && s.cfg.clock().Before(rec.ExpiresAt), nil
}

// Purge removes records expired at now and returns how many were dropped.
func (s *MemoryStore) Purge(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.entries {
		if !now.Before(rec.ExpiresAt) {
			delete(s.entries, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records, including expired ones not yet purged.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) cleanupLoop() {
	ticker := time.NewTicker(s.cfg.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.Purge(context.Background(), s.cfg.clock())
		case <-s.stopCleanup:
			return
		}
	}
}

// Close stops the sweeper. Safe to call multiple times.
func (s *MemoryStore) Close() error {
	s.cleanupOnce.Do(func() {
		close(s.stopCleanup)
	})
	return nil
}
