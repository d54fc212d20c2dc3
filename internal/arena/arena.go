// Package arena implements the ordered keyed map at the core of the
// cache: O(1) insert/lookup/remove backed by a Go map plus an explicit
// doubly linked chain of slot indices (an arena with a free list), rather
// than a graph of pointer-linked nodes. Recycled slots avoid per-entry
// allocation churn under steady-state insert/evict traffic.
//
// Map is not itself safe for concurrent use — it has no lock of its own.
// The cache facade serializes every call under its own map lock.
package arena

// noSlot is the sentinel for "no such link" (both for the chain and the
// free list).
const noSlot = int32(-1)

type slot[K comparable, V any] struct {
	key  K
	val  V
	size int64

	prev, next int32 // chain links; noSlot at either chain end
	free       bool  // true while the slot sits on the free list
}

// Map is an ordered keyed map. The chain has a "most-recent" end and a
// "least-recent" end: new entries are always linked in at the
// most-recent end; Get additionally promotes the hit entry to the
// most-recent end when the map is access-ordered.
type Map[K comparable, V any] struct {
	accessOrdered bool

	slots []slot[K, V]
	free  []int32
	index map[K]int32

	mostRecent  int32
	leastRecent int32

	size int64 // sum of resident entry sizes
}

// New creates an empty Map. accessOrdered selects whether Get reorders the
// chain (LRU/MRU) or leaves it untouched (FIFO/FILO). capacityHint
// preallocates the backing slices; it is a hint, not a limit.
func New[K comparable, V any](accessOrdered bool, capacityHint int) *Map[K, V] {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Map[K, V]{
		accessOrdered: accessOrdered,
		slots:         make([]slot[K, V], 0, capacityHint),
		index:         make(map[K]int32, capacityHint),
		mostRecent:    noSlot,
		leastRecent:   noSlot,
	}
}

// Len reports the number of resident entries.
func (m *Map[K, V]) Len() int { return len(m.index) }

// Size reports the current sum of resident entry sizes. Size == 0 iff
// Len() == 0, maintained as an invariant by every mutating method.
func (m *Map[K, V]) Size() int64 { return m.size }

// Get returns the value for k. On a hit in an access-ordered map, k is
// promoted to the most-recent end of the chain.
func (m *Map[K, V]) Get(k K) (v V, ok bool) {
	i, found := m.index[k]
	if !found {
		return v, false
	}
	if m.accessOrdered {
		m.moveToMostRecent(i)
	}
	return m.slots[i].val, true
}

// Peek returns the value for k without reordering the chain, regardless
// of access-ordering mode.
func (m *Map[K, V]) Peek(k K) (v V, ok bool) {
	i, found := m.index[k]
	if !found {
		return v, false
	}
	return m.slots[i].val, true
}

// Contains reports whether k is resident, without touching the chain.
func (m *Map[K, V]) Contains(k K) bool {
	_, found := m.index[k]
	return found
}

// Put inserts or replaces k -> v with the given size, returning the
// previous value (if any). The net size delta is folded into Map's own
// Size().
//
// New entries are always linked at the most-recent end. A replacement is
// re-positioned to the most-recent end only when the map is
// access-ordered; insertion-ordered replacement leaves chain position
// untouched.
func (m *Map[K, V]) Put(k K, v V, size int64) (prev V, hadPrev bool) {
	if i, found := m.index[k]; found {
		s := &m.slots[i]
		prev, hadPrev = s.val, true
		m.size += size - s.size
		s.val, s.size = v, size
		if m.accessOrdered {
			m.moveToMostRecent(i)
		}
		m.checkAccounting()
		return prev, hadPrev
	}

	i := m.alloc(k, v, size)
	m.index[k] = i
	m.linkAtMostRecent(i)
	m.size += size
	m.checkAccounting()
	return prev, false
}

// Remove unlinks and deletes k, returning its value if present.
func (m *Map[K, V]) Remove(k K) (v V, ok bool) {
	i, found := m.index[k]
	if !found {
		return v, false
	}
	v = m.slots[i].val
	m.unlink(i)
	delete(m.index, k)
	m.size -= m.slots[i].size
	m.release(i)
	m.checkAccounting()
	return v, true
}

// KeysInOrder returns a snapshot slice of resident keys. fromMostRecent
// selects the traversal's starting end; the walk proceeds to the
// opposite end.
func (m *Map[K, V]) KeysInOrder(fromMostRecent bool) []K {
	out := make([]K, 0, len(m.index))
	m.walk(fromMostRecent, func(k K, _ V, _ int64) bool {
		out = append(out, k)
		return false
	})
	return out
}

// RemoveAllWhere walks the chain starting from the end selected by
// fromMostRecent, removing each visited entry before invoking visit with
// its key, value, and size, then stops as soon as visit returns true.
// It is the shared machinery behind the cache's trimTo, Clear, and EvictAll.
func (m *Map[K, V]) RemoveAllWhere(fromMostRecent bool, visit func(k K, v V, size int64) (done bool)) {
	// walk() snapshots the traversal order up front (see its doc comment)
	// so removing the current node mid-walk cannot corrupt iteration.
	m.walk(fromMostRecent, func(k K, v V, size int64) bool {
		m.removeLinked(k)
		return visit(k, v, size)
	})
}

// removeLinked removes a key that the caller has already confirmed is
// linked into the chain (used internally by RemoveAllWhere's visitor,
// which runs during a walk and must not re-check presence).
func (m *Map[K, V]) removeLinked(k K) {
	i := m.index[k]
	m.unlink(i)
	delete(m.index, k)
	m.size -= m.slots[i].size
	m.release(i)
	m.checkAccounting()
}

// checkAccounting enforces that size is always non-negative and zero iff
// the map is empty. A sizeOf that returns a negative delta, or one whose
// magnitude outgrows the entry it is charged against, corrupts this
// invariant; panicking here turns that corruption into a loud, immediate
// failure at the call that caused it, rather than a silent drift that
// surfaces later as a budget that never trims.
func (m *Map[K, V]) checkAccounting() {
	if m.size < 0 {
		panic("arena: accounted size went negative — sizeOf is inconsistent")
	}
	if len(m.index) == 0 && m.size != 0 {
		panic("arena: accounted size non-zero with no resident entries — sizeOf is inconsistent")
	}
}

// walk snapshots the chain order into a slice of slot indices before
// calling fn on each — fn is allowed to mutate the chain (RemoveAllWhere
// relies on this), which would otherwise invalidate a live prev/next
// traversal.
func (m *Map[K, V]) walk(fromMostRecent bool, fn func(k K, v V, size int64) (stop bool)) {
	order := make([]int32, 0, len(m.index))
	start := m.leastRecent
	if fromMostRecent {
		start = m.mostRecent
	}
	for i := start; i != noSlot; {
		order = append(order, i)
		if fromMostRecent {
			i = m.slots[i].next
		} else {
			i = m.slots[i].prev
		}
	}
	for _, i := range order {
		s := m.slots[i]
		if s.free {
			continue // already removed by an earlier step of this walk
		}
		if fn(s.key, s.val, s.size) {
			return
		}
	}
}

// -------------------- chain + arena internals --------------------

// Chain layout: mostRecent.prev == noSlot, leastRecent.next == noSlot.
// next points toward the least-recent end, prev points toward the
// most-recent end.

func (m *Map[K, V]) linkAtMostRecent(i int32) {
	s := &m.slots[i]
	s.prev = noSlot
	s.next = m.mostRecent
	if m.mostRecent != noSlot {
		m.slots[m.mostRecent].prev = i
	}
	m.mostRecent = i
	if m.leastRecent == noSlot {
		m.leastRecent = i
	}
}

func (m *Map[K, V]) unlink(i int32) {
	s := &m.slots[i]
	if s.prev != noSlot {
		m.slots[s.prev].next = s.next
	} else {
		m.mostRecent = s.next
	}
	if s.next != noSlot {
		m.slots[s.next].prev = s.prev
	} else {
		m.leastRecent = s.prev
	}
	s.prev, s.next = noSlot, noSlot
}

func (m *Map[K, V]) moveToMostRecent(i int32) {
	if i == m.mostRecent {
		return
	}
	m.unlink(i)
	m.linkAtMostRecent(i)
}

func (m *Map[K, V]) alloc(k K, v V, size int64) int32 {
	if n := len(m.free); n > 0 {
		i := m.free[n-1]
		m.free = m.free[:n-1]
		s := &m.slots[i]
		s.key, s.val, s.size, s.free = k, v, size, false
		return i
	}
	m.slots = append(m.slots, slot[K, V]{key: k, val: v, size: size, prev: noSlot, next: noSlot})
	return int32(len(m.slots) - 1)
}

func (m *Map[K, V]) release(i int32) {
	var zeroK K
	var zeroV V
	s := &m.slots[i]
	s.key, s.val, s.free = zeroK, zeroV, true
	m.free = append(m.free, i)
}
