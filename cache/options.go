package cache

import "github.com/Mayaka-Apps/coalesce/strategy"

// Options configures a cache built by New. Zero values are safe; sane
// defaults are applied:
//   - zero Strategy => LRU
//   - nil SizeOf     => every entry has size 1
//   - nil Executor    => each producer runs on its own goroutine
//   - nil OnRemoved   => no-op
//   - nil Metrics     => NoopMetrics
//
// MaxSize has no default: it must be a positive integer, or New panics.
type Options[K comparable, V any] struct {
	// MaxSize is the budget enforced by trimTo after every commit.
	MaxSize int64

	// Strategy selects the chain mode and eviction direction.
	Strategy strategy.Kind

	// Executor hosts producer goroutines started by PutProducer, PutAsync,
	// and GetOrPut. A nil Executor runs each producer with `go fn()`.
	Executor func(task func())

	// SizeOf computes the accounted size of a committed value. It runs
	// under the cache's map lock, so it must be pure, fast, and
	// non-blocking. A nil SizeOf charges every entry a size of 1.
	SizeOf func(k K, v V) int64

	// OnRemoved is called once for every removal: eviction, clear,
	// evictAll, explicit Remove, and replacement via Put/PutAll or a
	// successful producer. evicted is true only for removals performed by
	// the eviction engine (trimTo) or EvictAll. newValue is non-nil only
	// for replacements.
	//
	// OnRemoved must not call back into the cache: for evictions, clears,
	// evictAll, and producer replacements it runs while the map lock is
	// held, and a re-entrant call would deadlock; for Put/PutAll
	// replacements and explicit Remove it runs after the map lock is
	// released, but is still not supported.
	OnRemoved func(evicted bool, k K, oldValue V, newValue *V)

	// Metrics receives removal/size/in-flight signals. See Metrics.
	Metrics Metrics
}
