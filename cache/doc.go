// Package cache provides a concurrency-safe, size-bounded, in-memory
// associative cache with pluggable eviction strategies and asynchronous,
// coalesced value production.
//
// Design
//
//   - Storage: a single ordered keyed map (package arena) backs the whole
//     cache — no sharding. Lookups and removals are O(1) expected; entries
//     live in an arena of slots linked by index rather than by pointer,
//     and freed slots are recycled by later inserts.
//
//   - Strategies: LRU, MRU, FIFO, and FILO (package strategy) are each a
//     choice of chain mode (access- or insertion-ordered) and eviction
//     direction. The default is LRU.
//
//   - Size accounting: every commit charges Options.SizeOf(k, v); the sum
//     is tracked on the arena itself and mirrored into a cache-line-padded
//     atomic so bench and metrics code can poll it without contending on
//     the map lock.
//
//   - Producer coalescing: PutProducer, PutAsync, and GetOrPut submit a
//     Producer to an in-flight creation registry (package registry) that
//     guarantees at most one running producer per key. Concurrent callers
//     for the same key join the same outcome; a producer superseded by a
//     new producer or a direct Put resolves its waiters through a
//     structured replacement cause instead of an ambient cancellation
//     error.
//
//   - Locking: two mutexes, the creation lock (inside the registry) and
//     the map lock (the cache's own), always acquired creation-lock-first
//     when both are needed. Neither lock is held across caller-supplied
//     code other than SizeOf and the removal observer.
//
// Basic usage
//
//	c := cache.New[string, []byte](cache.Options[string, []byte]{MaxSize: 10_000})
//	c.Put("a", []byte("1"))
//	if v, ok := c.GetIfAvailable("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// Coalesced production
//
//	c := cache.New[string, string](cache.Options[string, string]{MaxSize: 1024})
//	v, ok := c.GetOrPut(context.Background(), "key", func(ctx context.Context) (string, error) {
//	    return fetchFromOrigin(ctx, "key")
//	})
//
// Choosing a strategy
//
//	c := cache.New[string, string](cache.Options[string, string]{
//	    MaxSize:  50_000,
//	    Strategy: strategy.FIFO,
//	})
//
// Exporting metrics (example Prometheus adapter)
//
//	m := prom.New(nil, "coalesce", "demo", nil) // implements cache.Metrics
//	c := cache.New[string, []byte](cache.Options[string, []byte]{
//	    MaxSize: 10_000,
//	    Metrics: m,
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Get/Put-family
// operations are O(1) expected time plus, for the producer paths,
// whatever time the producer itself takes. An eviction sweep first
// snapshots the whole chain order, so it costs O(n) in the number of
// resident entries, plus O(1) per removed entry.
package cache
