package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Keeps a sorted set of request times (ms) per key. ARGV[5] == "1" records.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]
local record = ARGV[5] == "1"

redis.call("ZREMRANGEBYSCORE", key, "-inf", now - window)
local count = redis.call("ZCARD", key)

local recorded = 0
if record and count < limit then
  redis.call("ZADD", key, now, member)
  count = count + 1
  recorded = 1
end
if count > 0 then
  redis.call("PEXPIRE", key, window)
end

local oldest = -1
local first = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
if first[2] then
  oldest = tonumber(first[2])
end

return {recorded, count, oldest}
`)

// RedisStore shares windows across service instances. Timestamps are kept at
// millisecond precision.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ WindowStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "linkguard:ratelimit:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Record(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (Window, error) {
	return s.run(ctx, key, now, window, limit, true)
}

func (s *RedisStore) Peek(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	return s.run(ctx, key, now, window, 0, false)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func (s *RedisStore) run(ctx context.Context, key string, now time.Time, window time.Duration, limit int, record bool) (Window, error) {
	flag := "0"
	if record {
		flag = "1"
	}

	vals, err := slidingWindowScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixMilli(),
		window.Milliseconds(),
		limit,
		uuid.NewString(),
		flag,
	).Int64Slice()
	if err != nil {
		return Window{}, fmt.Errorf("ratelimit: redis window: %w", err)
	}
	if len(vals) != 3 {
		return Window{}, fmt.Errorf("ratelimit: unexpected script reply of %d values", len(vals))
	}

	w := Window{
		Recorded: vals[0] == 1,
		Count:    int(vals[1]),
	}
	if vals[2] >= 0 {
		w.Oldest = time.UnixMilli(vals[2])
	}
	return w, nil
}
