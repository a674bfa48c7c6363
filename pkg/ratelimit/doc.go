// Package ratelimit implements a per-client sliding-window request limiter
// and net/http middleware for it.
//
// Each key keeps the timestamps of its recent requests. A check drops the
// ones at or before now-window, then allows and records the request while
// fewer than limit remain. ResetAt is when the oldest counted request leaves
// the window, which drives Retry-After.
//
//	store := ratelimit.NewMemoryStore(cfg.MaxKeys)
//	defer store.Close()
//
//	limiter, err := ratelimit.NewSlidingWindow(store, cfg.Limit, cfg.Window)
//	if err != nil {
//		return err
//	}
//
//	r.With(ratelimit.Middleware(limiter, ratelimit.ClientIP(trustProxy))).
//		Get("/validate", h)
//
// MemoryStore bounds memory with an LRU over client keys; evicting a cold key
// only resets that client's budget. RedisStore runs the same algorithm in a
// Lua script over a sorted set so several instances share one budget.
//
// The middleware sets X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset (unix seconds) on every limited response, and answers
// denied requests with 429, Retry-After and {"error":"rate_limited"}. Limiter
// failures let the request through; use WithOnError to observe them. A
// request whose key cannot be resolved is limited by its raw RemoteAddr.
package ratelimit
