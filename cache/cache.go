package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Mayaka-Apps/coalesce/internal/arena"
	"github.com/Mayaka-Apps/coalesce/internal/registry"
	"github.com/Mayaka-Apps/coalesce/strategy"
)

// cache is the facade orchestrating the ordered map, the size accountant,
// the eviction engine, and the creation registry under two mutexes.
// Producer-success commits re-enter the facade from inside the registry's
// creation lock and take the map lock themselves; Put, PutAll, Remove,
// GetOrPut's presence check, UnderCreationKeys, and AllKeys likewise take
// the map lock inside a registry callback. Wherever both locks are held,
// they are taken in the order creation lock, then map lock, never the
// reverse.
type cache[K comparable, V any] struct {
	mu    sync.Mutex // the map lock
	store *arena.Map[K, V]

	reg  *registry.Registry[K, V]
	desc strategy.Descriptor

	maxSize atomic.Int64
	// sizeMirror lets callers (metrics adapters, bench drivers) read the
	// accounted size without taking the map lock.
	sizeMirror paddedAtomicInt64

	sizeOf    func(k K, v V) int64
	onRemoved func(evicted bool, k K, oldValue V, newValue *V)
	metrics   Metrics
}

// New constructs a cache with the given Options. opt.MaxSize must be
// positive; New panics otherwise — a configuration error is a programmer
// error, not a recoverable condition.
func New[K comparable, V any](opt Options[K, V]) Cache[K, V] {
	if opt.MaxSize <= 0 {
		panic("cache: MaxSize must be > 0")
	}
	if opt.SizeOf == nil {
		opt.SizeOf = func(K, V) int64 { return 1 }
	}
	if opt.OnRemoved == nil {
		opt.OnRemoved = func(bool, K, V, *V) {}
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	desc := strategy.Resolve(opt.Strategy)

	capacityHint := 0
	if opt.MaxSize > 0 && opt.MaxSize < 1<<20 {
		capacityHint = int(nextPow2(uint64(opt.MaxSize)))
	}

	c := &cache[K, V]{
		store:     arena.New[K, V](desc.AccessOrdered, capacityHint),
		reg:       registry.New[K, V](opt.Executor),
		desc:      desc,
		sizeOf:    opt.SizeOf,
		onRemoved: opt.OnRemoved,
		metrics:   opt.Metrics,
	}
	c.maxSize.Store(opt.MaxSize)
	return c
}

var _ Cache[string, string] = (*cache[string, string])(nil)

// ---- notification plumbing ----

func (c *cache[K, V]) notify(evicted bool, k K, oldValue V, newValue *V, cause RemovalCause) {
	c.onRemoved(evicted, k, oldValue, newValue)
	c.metrics.Removed(cause)
}

// snapshotGaugesLocked reads the store's current entry count and size.
// Callers hold c.mu.
func (c *cache[K, V]) snapshotGaugesLocked() {
	n, sz := c.store.Len(), c.store.Size()
	c.sizeMirror.Store(sz)
	c.metrics.Size(n, sz)
}

func (c *cache[K, V]) reportInFlight() {
	c.metrics.InFlight(len(c.reg.Keys()))
}

// ---- reads ----

func (c *cache[K, V]) GetIfAvailable(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Get(k)
}

func (c *cache[K, V]) Get(ctx context.Context, k K) (V, bool) {
	if h, ok := c.reg.Lookup(k); ok {
		return c.awaitAndResolve(ctx, h, k)
	}
	return c.GetIfAvailable(k)
}

func (c *cache[K, V]) GetOrDefault(ctx context.Context, k K, def V) V {
	if v, ok := c.Get(ctx, k); ok {
		return v
	}
	return def
}

// awaitAndResolve translates a registry Outcome into the public (V, bool)
// contract: a replacement by value is resolved by reading the current
// committed value, which the registry (unaware of the primary map) cannot
// do on its own.
func (c *cache[K, V]) awaitAndResolve(ctx context.Context, h *registry.Handle[K, V], key K) (V, bool) {
	v, outcome := c.reg.Await(ctx, h)
	switch outcome {
	case registry.Succeeded:
		return v, true
	case registry.ReplacedByValue:
		return c.GetIfAvailable(key)
	default:
		var zero V
		return zero, false
	}
}

// ---- producer-driven writes ----

// commitFromProducer runs as the onSuccess callback passed to the
// registry, synchronously while the creation lock is held. It takes the
// map lock itself, and fires the replaced-entry observer while still
// holding it — unlike Put, whose replaced-entry observer fires only after
// the map lock is released. Both orders are correct; only a caller that
// re-enters the cache from inside the observer (forbidden either way)
// would notice the difference.
func (c *cache[K, V]) commitFromProducer(k K, v V) {
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		size := c.sizeOf(k, v)
		prevValue, hadPrev := c.store.Put(k, v, size)
		if hadPrev {
			nv := v
			c.notify(false, k, prevValue, &nv, CauseReplace)
		}
		c.snapshotGaugesLocked()
	}()

	c.trimTo(c.maxSize.Load())
}

func (c *cache[K, V]) startProducer(ctx context.Context, k K, fn Producer[V]) *registry.Handle[K, V] {
	h := c.reg.Start(ctx, k, registry.Producer[V](fn), func(v V) { c.commitFromProducer(k, v) })
	c.reportInFlight()
	return h
}

func (c *cache[K, V]) PutProducer(ctx context.Context, k K, fn Producer[V]) (V, bool) {
	h := c.startProducer(ctx, k, fn)
	return c.awaitAndResolve(ctx, h, k)
}

func (c *cache[K, V]) PutAsync(ctx context.Context, k K, fn Producer[V]) *Future[K, V] {
	h := c.startProducer(ctx, k, fn)
	return &Future[K, V]{c: c, key: k, h: h}
}

func (c *cache[K, V]) GetOrPut(ctx context.Context, k K, fn Producer[V]) (V, bool) {
	if v, ok := c.Get(ctx, k); ok {
		return v, true
	}

	present := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.store.Contains(k)
	}
	h, started := c.reg.StartIfAbsent(ctx, k, registry.Producer[V](fn), func(v V) { c.commitFromProducer(k, v) }, present)
	if started {
		c.reportInFlight()
		return c.awaitAndResolve(ctx, h, k)
	}

	// Another caller's producer or value won the race; join whatever is
	// there now.
	return c.Get(ctx, k)
}

// ---- direct writes ----

func (c *cache[K, V]) Put(k K, v V) (V, bool) {
	var prevValue V
	var hadPrev bool

	c.reg.CancelWithValueAnd(k, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		size := c.sizeOf(k, v)
		prevValue, hadPrev = c.store.Put(k, v, size)
		c.snapshotGaugesLocked()
	})

	if hadPrev {
		nv := v
		c.notify(false, k, prevValue, &nv, CauseReplace)
	}
	c.trimTo(c.maxSize.Load())
	return prevValue, hadPrev
}

type replacedEntry[K comparable, V any] struct {
	key      K
	oldValue V
	newValue V
}

func (c *cache[K, V]) PutAll(entries map[K]V) {
	keys := make([]K, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}

	var replaced []replacedEntry[K, V]
	c.reg.CancelWithValueAllAnd(keys, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for k, v := range entries {
			size := c.sizeOf(k, v)
			prevValue, hadPrev := c.store.Put(k, v, size)
			if hadPrev {
				replaced = append(replaced, replacedEntry[K, V]{key: k, oldValue: prevValue, newValue: v})
			}
		}
		c.snapshotGaugesLocked()
	})

	for _, r := range replaced {
		nv := r.newValue
		c.notify(false, r.key, r.oldValue, &nv, CauseReplace)
	}
	c.trimTo(c.maxSize.Load())
}

func (c *cache[K, V]) Remove(k K) (V, bool) {
	var v V
	var ok bool

	c.reg.CancelAnd(k, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		v, ok = c.store.Remove(k)
		c.snapshotGaugesLocked()
	})

	if ok {
		c.notify(false, k, v, nil, CauseRemove)
	}
	return v, ok
}

func (c *cache[K, V]) RemoveAllUnderCreation() {
	c.reg.CancelAll()
	c.reportInFlight()
}

// ---- bulk removal ----

func (c *cache[K, V]) Clear() {
	c.reg.CancelAll()
	c.reportInFlight()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.RemoveAllWhere(c.desc.EvictFromMostRecent, func(k K, v V, _ int64) bool {
		c.notify(false, k, v, nil, CauseClear)
		return false
	})
	c.snapshotGaugesLocked()
}

func (c *cache[K, V]) EvictAll() {
	c.reg.CancelAll()
	c.reportInFlight()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.RemoveAllWhere(c.desc.EvictFromMostRecent, func(k K, v V, _ int64) bool {
		c.notify(true, k, v, nil, CauseEvictAll)
		return false
	})
	c.snapshotGaugesLocked()
}

func (c *cache[K, V]) Resize(newMax int64) {
	if newMax <= 0 {
		panic("cache: Resize requires newMax > 0")
	}
	c.maxSize.Store(newMax)
	c.trimTo(newMax)
}

func (c *cache[K, V]) TrimToSize(n int64) {
	c.trimTo(n)
}

// trimTo removes entries in the strategy's eviction direction until size
// is at most budget, reporting each removal as an eviction.
func (c *cache[K, V]) trimTo(budget int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store.Size() <= budget {
		return
	}
	c.store.RemoveAllWhere(c.desc.EvictFromMostRecent, func(k K, v V, _ int64) bool {
		c.notify(true, k, v, nil, CauseEviction)
		return c.store.Size() <= budget
	})
	c.snapshotGaugesLocked()
}

// ---- enumeration ----

func (c *cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.KeysInOrder(c.desc.ForwardFromMostRecent())
}

func (c *cache[K, V]) UnderCreationKeys() []K {
	var out []K
	c.reg.WithLock(func(snapshotKeys func() []K) {
		c.mu.Lock()
		defer c.mu.Unlock()
		out = snapshotKeys()
	})
	return out
}

func (c *cache[K, V]) AllKeys() []K {
	var out []K
	c.reg.WithLock(func(snapshotKeys func() []K) {
		c.mu.Lock()
		defer c.mu.Unlock()

		seen := make(map[K]struct{}, c.store.Len())
		for _, k := range c.store.KeysInOrder(c.desc.ForwardFromMostRecent()) {
			seen[k] = struct{}{}
			out = append(out, k)
		}
		for _, k := range snapshotKeys() {
			if _, dup := seen[k]; !dup {
				out = append(out, k)
			}
		}
	})
	return out
}

func (c *cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}

func (c *cache[K, V]) Size() int64 {
	return c.sizeMirror.Load()
}
