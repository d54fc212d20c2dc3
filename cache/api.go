package cache

import (
	"context"

	"github.com/Mayaka-Apps/coalesce/internal/registry"
)

// Producer computes the value for a key, possibly suspending on ctx. It
// must observe ctx cancellation promptly: the cache cancels it when a
// newer producer or a direct value replaces it, but cannot force it to
// stop.
type Producer[V any] func(ctx context.Context) (V, error)

// Cache is a concurrency-safe, size-bounded associative cache with
// pluggable eviction order and coalesced asynchronous value production.
// All methods are safe for concurrent use by multiple goroutines.
type Cache[K comparable, V any] interface {
	// GetIfAvailable returns the committed value for k, if any, without
	// waiting on an in-flight producer. On a hit in an access-ordered
	// cache, k is promoted.
	GetIfAvailable(k K) (V, bool)

	// Get returns the committed value for k. If a producer is currently
	// running for k, Get joins it and returns what it (or whatever
	// superseded it) resolves to; otherwise it behaves like
	// GetIfAvailable.
	Get(ctx context.Context, k K) (V, bool)

	// GetOrDefault is Get, substituting def for a miss.
	GetOrDefault(ctx context.Context, k K, def V) V

	// Put commits v for k, returning the value it replaced (if any). Any
	// producer in flight for k is cancelled and superseded by v.
	Put(k K, v V) (previous V, hadPrevious bool)

	// PutProducer starts a producer for k, superseding any producer
	// already running for it, and blocks until it resolves.
	PutProducer(ctx context.Context, k K, fn Producer[V]) (V, bool)

	// PutAsync starts a producer for k, superseding any producer already
	// running for it, and returns immediately with a Future for it.
	PutAsync(ctx context.Context, k K, fn Producer[V]) *Future[K, V]

	// GetOrPut returns the current value for k if one exists or is being
	// produced; otherwise it starts fn as k's producer and returns its
	// result.
	GetOrPut(ctx context.Context, k K, fn Producer[V]) (V, bool)

	// PutAll commits every entry atomically with respect to concurrent
	// readers: a reader of any key in entries either observes none of
	// the batch or, once PutAll returns, all of it. Any producer in
	// flight for a key in entries is cancelled and superseded.
	PutAll(entries map[K]V)

	// Remove cancels any producer in flight for k and removes its
	// committed value, returning it if present.
	Remove(k K) (V, bool)

	// RemoveAllUnderCreation cancels every in-flight producer, leaving
	// committed entries untouched.
	RemoveAllUnderCreation()

	// Clear cancels every in-flight producer and removes every committed
	// entry, reporting each removal with evicted=false.
	Clear()

	// EvictAll cancels every in-flight producer and removes every
	// committed entry, reporting each removal with evicted=true.
	EvictAll()

	// Resize changes the size budget and immediately trims to it.
	// newMax must be positive, or Resize panics.
	Resize(newMax int64)

	// TrimToSize evicts entries until the accounted size is at most n.
	// Idempotent: a second call with the same n is a no-op.
	TrimToSize(n int64)

	// Keys returns a snapshot of committed keys in the strategy's forward
	// enumeration order.
	Keys() []K

	// UnderCreationKeys returns a snapshot of keys with a producer
	// currently in flight.
	UnderCreationKeys() []K

	// AllKeys returns a snapshot union of Keys and UnderCreationKeys.
	AllKeys() []K

	// Len returns the number of committed entries.
	Len() int

	// Size returns the current accounted size.
	Size() int64
}

// Future is a handle to a producer started by PutAsync.
type Future[K comparable, V any] struct {
	c   *cache[K, V]
	key K
	h   *registry.Handle[K, V]
}

// Await blocks until the producer resolves (or ctx is done) and reports
// its value, joining any producer or value that superseded it.
func (f *Future[K, V]) Await(ctx context.Context) (V, bool) {
	return f.c.awaitAndResolve(ctx, f.h, f.key)
}
