// Package registry tracks in-flight value producers: at most one per key,
// with concurrent callers coalescing onto that producer and replacement
// resolved through a structured cancellation cause rather than the host's
// generic cancellation error, so a replaced caller can tell a brand-new
// producer from a direct value write and recover accordingly.
package registry

import (
	"context"
	"sync"
)

// Cause tags why an in-flight producer was cancelled by a replacement.
type Cause int

const (
	// CauseCreation: a new producer was started for the same key before
	// this one finished.
	CauseCreation Cause = iota
	// CauseValue: a direct value was written for the same key before
	// this producer finished.
	CauseValue
)

// Outcome classifies how an Await resolved.
type Outcome int

const (
	// Succeeded: the producer returned a value; Await's V return holds it.
	Succeeded Outcome = iota
	// FailedOrCancelled: the producer errored, or was cancelled for a
	// reason other than replacement (explicit Remove, Clear, EvictAll,
	// RemoveAllUnderCreation, or the producer's own context ending).
	FailedOrCancelled
	// ReplacedByValue: a direct value write superseded the producer (or
	// superseded the producer that superseded it, transitively), or the
	// producer that superseded it has already finished and left the
	// registry; the caller must consult the primary map for the current
	// value.
	ReplacedByValue
)

type resultKind int

const (
	kindSucceeded resultKind = iota
	kindFailedOrCancelled
	kindReplaced
)

type result[V any] struct {
	kind  resultKind
	value V
	cause Cause
}

// Handle is an in-flight (or just-finished) producer for one key.
type Handle[K comparable, V any] struct {
	key    K
	ctx    context.Context
	done   chan struct{}
	cancel context.CancelFunc
	res    result[V] // written once, before done is closed; read-only after
}

// Producer computes the value for a key. It must observe ctx cancellation
// promptly: the registry cancels ctx when the producer is replaced, but
// cannot force it to stop.
type Producer[V any] func(ctx context.Context) (V, error)

// Registry maps keys to their in-flight producer handle. Its mutex is the
// creation lock: callers that also need the cache's map lock must acquire
// it only after Registry's methods return, or from inside a callback that
// Registry runs while the creation lock is held — the onSuccess callback
// passed to Start/StartIfAbsent, StartIfAbsent's present, the fn of
// CancelWithValueAnd, CancelWithValueAllAnd, and CancelAnd, and the fn of
// WithLock. Those callbacks may take the map lock themselves, preserving a
// fixed creation-lock-before-map-lock order across the whole call chain.
type Registry[K comparable, V any] struct {
	mu       sync.Mutex
	m        map[K]*Handle[K, V]
	executor func(task func())
}

// New returns an empty Registry. executor hosts producer goroutines; a nil
// executor runs each producer on its own goroutine (the package default).
func New[K comparable, V any](executor func(task func())) *Registry[K, V] {
	if executor == nil {
		executor = func(task func()) { go task() }
	}
	return &Registry[K, V]{m: make(map[K]*Handle[K, V]), executor: executor}
}

// Start installs a new producer for key, cancelling and superseding any
// handle already in flight for it with CauseCreation.
func (r *Registry[K, V]) Start(ctx context.Context, key K, fn Producer[V], onSuccess func(v V)) *Handle[K, V] {
	r.mu.Lock()
	if existing, ok := r.m[key]; ok {
		delete(r.m, key)
		r.finishLocked(existing, result[V]{kind: kindReplaced, cause: CauseCreation})
	}
	h := r.installLocked(ctx, key)
	r.mu.Unlock()

	r.executor(func() { r.run(h, h.ctx, fn, onSuccess) })
	return h
}

// StartIfAbsent installs a new producer for key only if neither a
// producer nor a committed value exists for it (present reports the
// latter, and is invoked while creationLock is held — it is expected to
// take mapLock itself, preserving lock order). It reports false, doing
// nothing, if either already exists; the caller is expected to join the
// existing producer (or read the existing value) itself.
func (r *Registry[K, V]) StartIfAbsent(ctx context.Context, key K, fn Producer[V], onSuccess func(v V), present func() bool) (*Handle[K, V], bool) {
	r.mu.Lock()
	if _, ok := r.m[key]; ok {
		r.mu.Unlock()
		return nil, false
	}
	if present() {
		r.mu.Unlock()
		return nil, false
	}
	h := r.installLocked(ctx, key)
	r.mu.Unlock()

	r.executor(func() { r.run(h, h.ctx, fn, onSuccess) })
	return h, true
}

// installLocked allocates and registers a fresh handle for key. Callers
// hold r.mu.
func (r *Registry[K, V]) installLocked(ctx context.Context, key K) *Handle[K, V] {
	childCtx, cancel := context.WithCancel(ctx)
	h := &Handle[K, V]{key: key, ctx: childCtx, done: make(chan struct{}), cancel: cancel}
	r.m[key] = h
	return h
}

func (r *Registry[K, V]) run(h *Handle[K, V], ctx context.Context, fn Producer[V], onSuccess func(v V)) {
	v, err := fn(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m[h.key] != h {
		// Already superseded; our result is stale and must be discarded —
		// no commit, no second outcome delivered to anyone.
		return
	}
	delete(r.m, h.key)
	if err != nil || ctx.Err() != nil {
		r.finishLocked(h, result[V]{kind: kindFailedOrCancelled})
		return
	}
	onSuccess(v)
	r.finishLocked(h, result[V]{kind: kindSucceeded, value: v})
}

// CancelWithValue supersedes the in-flight producer for key (if any) with
// CauseValue, for a direct Put(key, value).
func (r *Registry[K, V]) CancelWithValue(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.m[key]; ok {
		delete(r.m, key)
		r.finishLocked(h, result[V]{kind: kindReplaced, cause: CauseValue})
	}
}

// CancelWithValueAnd is CancelWithValue followed by fn, both under the
// creation lock — so a caller that needs to commit a value into the
// primary map right after superseding key's producer (Put) can take the
// map lock from inside fn without ever reversing lock order.
func (r *Registry[K, V]) CancelWithValueAnd(key K, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.m[key]; ok {
		delete(r.m, key)
		r.finishLocked(h, result[V]{kind: kindReplaced, cause: CauseValue})
	}
	fn()
}

// CancelWithValueAllAnd is CancelWithValueAnd over a batch of keys,
// cancelling each under a single creation-lock acquisition before running
// fn — used by PutAll.
func (r *Registry[K, V]) CancelWithValueAllAnd(keys []K, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		if h, ok := r.m[key]; ok {
			delete(r.m, key)
			r.finishLocked(h, result[V]{kind: kindReplaced, cause: CauseValue})
		}
	}
	fn()
}

// Cancel cancels the in-flight producer for key (if any) with no
// replacement cause. Explicit Remove uses CancelAnd, which does the same
// and then runs its callback.
func (r *Registry[K, V]) Cancel(key K) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.m[key]; ok {
		delete(r.m, key)
		r.finishLocked(h, result[V]{kind: kindFailedOrCancelled})
	}
}

// CancelAnd is Cancel followed by fn, both under the creation lock — used
// by Remove to commit the map removal without reversing lock order.
func (r *Registry[K, V]) CancelAnd(key K, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.m[key]; ok {
		delete(r.m, key)
		r.finishLocked(h, result[V]{kind: kindFailedOrCancelled})
	}
	fn()
}

// CancelAll cancels every in-flight producer with no replacement cause —
// used by Clear, EvictAll, and RemoveAllUnderCreation.
func (r *Registry[K, V]) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, h := range r.m {
		delete(r.m, key)
		r.finishLocked(h, result[V]{kind: kindFailedOrCancelled})
	}
}

// Lookup reports whether a producer is currently in flight for key.
func (r *Registry[K, V]) Lookup(key K) (*Handle[K, V], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.m[key]
	return h, ok
}

// Keys returns a snapshot of keys with a producer currently in flight.
func (r *Registry[K, V]) Keys() []K {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]K, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	return out
}

// WithLock runs fn while the creation lock is held, passing it a snapshot
// function of the currently in-flight keys. It exists solely so a caller
// that also needs a consistent view of the primary map can take both
// locks for the snapshot, creation lock before map lock, instead of
// reading the registry unsynchronized with respect to the map lock.
func (r *Registry[K, V]) WithLock(fn func(snapshotKeys func() []K)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(func() []K {
		out := make([]K, 0, len(r.m))
		for k := range r.m {
			out = append(out, k)
		}
		return out
	})
}

// finishLocked publishes res and wakes every Await-er. Callers hold r.mu.
func (r *Registry[K, V]) finishLocked(h *Handle[K, V], res result[V]) {
	h.cancel()
	h.res = res
	close(h.done)
}

// Await blocks until h resolves (or ctx is done) and reports how. When h
// was replaced by a new producer, Await transparently rejoins the
// replacement handle (recursively, if it too is replaced) rather than
// surfacing an intermediate cancellation to the caller; the Outcome the
// caller finally observes is therefore always one of Succeeded,
// FailedOrCancelled, or ReplacedByValue.
func (r *Registry[K, V]) Await(ctx context.Context, h *Handle[K, V]) (V, Outcome) {
	for {
		select {
		case <-h.done:
		case <-ctx.Done():
			var zero V
			return zero, FailedOrCancelled
		}

		switch h.res.kind {
		case kindSucceeded:
			return h.res.value, Succeeded
		case kindFailedOrCancelled:
			var zero V
			return zero, FailedOrCancelled
		case kindReplaced:
			if h.res.cause == CauseValue {
				var zero V
				return zero, ReplacedByValue
			}
			// CauseCreation: rejoin whatever is in flight for the key now.
			next, ok := r.Lookup(h.key)
			if !ok {
				// The replacement has already finished and left the
				// registry; the map now holds the answer either way.
				var zero V
				return zero, ReplacedByValue
			}
			h = next
		}
	}
}
