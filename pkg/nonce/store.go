package nonce

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DefaultTTL keeps consumption records for at least the default token lifetime.
const DefaultTTL = 24 * time.Hour

// Store records consumed nonces.
type Store interface {
	// Claim atomically marks nonce as consumed. It returns false when the
	// nonce has already been claimed and its record has not expired.
	Claim(ctx context.Context, nonce, subjectID string, now time.Time) (bool, error)

	// IsClaimed reports whether a live record exists for nonce. It is a
	// diagnostic read and must never gate a consuming decision.
	IsClaimed(ctx context.Context, nonce string) (bool, error)
}

// Record is the stored consumption marker.
type Record struct {
	Key        string    `json:"key"`
	SubjectID  string    `json:"subject_id"`
	ConsumedAt time.Time `json:"consumed_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Key derives the storage key for a nonce. Raw nonces never reach storage.
func Key(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return hex.EncodeToString(sum[:])
}

func newRecord(nonce, subjectID string, now time.Time, ttl time.Duration) Record {
	return Record{
		Key:        Key(nonce),
		SubjectID:  subjectID,
		ConsumedAt: now.UTC(),
		ExpiresAt:  now.Add(ttl).UTC(),
	}
}

type config struct {
	ttl             time.Duration
	keyPrefix       string
	clock           func() time.Time
	cleanupInterval time.Duration
}

func defaultConfig() config {
	return config{
		ttl:             DefaultTTL,
		keyPrefix:       "linkguard:nonce:",
		clock:           time.Now,
		cleanupInterval: time.Minute,
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Option configures a store. Options a backend does not use are ignored.
type Option func(*config)

// WithTTL sets how long a consumption record lives. It must be at least the
// token lifetime. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the key namespace for key-value backends.
func WithKeyPrefix(prefix string) Option {
	return func(c *config) { c.keyPrefix = prefix }
}

// WithClock sets the time source used by IsClaimed and background cleanup.
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithCleanupInterval sets the MemoryStore sweep interval. Zero disables the sweeper.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *config) {
		if d >= 0 {
			c.cleanupInterval = d
		}
	}
}
