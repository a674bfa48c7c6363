// Package cache provides a generic, bounded, thread-safe LRU map.
//
// The cache holds per-key state whose key space is attacker controlled, such
// as rate-limit windows keyed by client address. Capacity caps memory; once
// it is exceeded the least recently used key is dropped.
//
//	c := cache.NewLRUCache[string, []int64](10_000)
//
//	hits := c.Update("198.51.100.7", func(cur []int64, _ bool) []int64 {
//		return append(cur, nowMs)
//	})
//
// Update is the primitive for read-modify-write state: fn runs under the
// cache lock, so two goroutines updating the same key never interleave.
// Keep fn short and never call back into the cache from inside it.
//
// Update refreshes recency. Peek does not. RemoveFunc sweeps entries
// matching a predicate, which is how callers drop idle state.
//
// OnEvict reports keys dropped for capacity, so callers can count them.
//
// All operations are O(1) except RemoveFunc and Clear.
package cache
