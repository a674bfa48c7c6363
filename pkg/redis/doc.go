// Package redis connects to Redis with go-redis and exposes a readiness check.
//
// The client it returns backs the shared nonce store and the distributed rate
// limiter when those backends are selected.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	ready := redis.Healthcheck(client)
//
// Config is populated from REDIS_* environment variables.
package redis
