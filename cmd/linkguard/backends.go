package main

import (
	"context"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/linkguard/pkg/api"
	"github.com/dmitrymomot/linkguard/pkg/logger"
	"github.com/dmitrymomot/linkguard/pkg/metrics"
	"github.com/dmitrymomot/linkguard/pkg/mongo"
	"github.com/dmitrymomot/linkguard/pkg/nonce"
	"github.com/dmitrymomot/linkguard/pkg/pg"
	"github.com/dmitrymomot/linkguard/pkg/ratelimit"
	"github.com/dmitrymomot/linkguard/pkg/redis"
)

// backends holds the stores chosen by configuration and what is needed to
// probe and release them.
type backends struct {
	nonces  nonce.Store
	purger  nonce.Purger // nil when the store expires records itself
	windows ratelimit.WindowStore
	checks  map[string]api.Check
	closers []func()
}

// Close releases backends in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

func openBackends(ctx context.Context, cfg Config, log *slog.Logger, m *metrics.Metrics) (_ *backends, err error) {
	b := &backends{checks: make(map[string]api.Check)}
	defer func() {
		if err != nil {
			b.Close()
		}
	}()

	var rdb *goredis.Client
	if cfg.usesRedis() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rdb = client
		b.checks["redis"] = redis.Healthcheck(client)
		b.closers = append(b.closers, func() { _ = client.Close() })
	}

	nonceOpts := []nonce.Option{nonce.WithTTL(cfg.NonceTTL)}

	switch cfg.NonceBackend {
	case backendMemory:
		s := nonce.NewMemoryStore(append(nonceOpts, nonce.WithCleanupInterval(cfg.NoncePurgeInterval))...)
		b.nonces = s
		b.closers = append(b.closers, func() { _ = s.Close() })

	case backendRedis:
		b.nonces = nonce.NewRedisStore(rdb, nonceOpts...)

	case backendPostgres:
		pool, err := pg.Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.checks["postgres"] = pg.Healthcheck(pool)

		if err := pg.Migrate(ctx, pool, nonce.Migrations, nonce.MigrationsDir, cfg.Postgres.MigrationsTable, log); err != nil {
			return nil, err
		}
		s := nonce.NewPostgresStore(pool, nonceOpts...)
		b.nonces, b.purger = s, s

	case backendMongo:
		db, err := mongo.NewWithDatabase(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		client := db.Client()
		b.closers = append(b.closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		b.checks["mongo"] = mongo.Healthcheck(client)

		s := nonce.NewMongoStore(db, nonceOpts...)
		if err := s.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		b.nonces, b.purger = s, s
	}

	switch cfg.RateLimitBackend {
	case backendRedis:
		b.windows = ratelimit.NewRedisStore(rdb, "")
	default:
		s := ratelimit.NewMemoryStore(cfg.RateLimit.MaxKeys,
			ratelimit.WithOnEvict(func(string) { m.ObserveEviction() }),
		)
		b.windows = s
		b.closers = append(b.closers, func() { _ = s.Close() })
	}

	log.InfoContext(ctx, "backends ready",
		logger.Group("nonce", logger.Backend(cfg.NonceBackend)),
		logger.Group("ratelimit", logger.Backend(cfg.RateLimitBackend)),
	)
	return b, nil
}
