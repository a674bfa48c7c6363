package nonce

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore claims nonces with SET NX, so concurrent claims on one key
// resolve inside Redis with exactly one winner.
type RedisStore struct {
	client redis.UniversalClient
	cfg    config
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, opts ...Option) *RedisStore {
	return &RedisStore{
		client: client,
		cfg:    applyOptions(opts),
	}
}

func (s *RedisStore) Claim(ctx context.Context, nonce, subjectID string, now time.Time) (bool, error) {
	if nonce == "" {
		return false, ErrEmptyNonce
	}

	rec := newRecord(nonce, subjectID, now, s.cfg.ttl)
	payload, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.Key), payload, s.cfg.ttl).Result()
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return ok, nil
}

func (s *RedisStore) IsClaimed(ctx context.Context, nonce string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(Key(nonce))).Result()
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

func (s *RedisStore) key(k string) string {
	return s.cfg.keyPrefix + k
}
