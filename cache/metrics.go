package cache

// RemovalCause explains which operation removed an entry, for metrics
// purposes. It is distinct from the evicted flag passed to OnRemoved: two
// different causes (Clear, Remove) both report evicted=false.
type RemovalCause int

const (
	// CauseEviction — removed by trimTo to satisfy the size budget.
	CauseEviction RemovalCause = iota
	// CauseClear — removed by Clear.
	CauseClear
	// CauseEvictAll — removed by EvictAll.
	CauseEvictAll
	// CauseReplace — removed because Put, PutAll, or a successful producer
	// committed a new value over it.
	CauseReplace
	// CauseRemove — removed by an explicit Remove.
	CauseRemove
)

// Metrics exposes cache-level observability hooks. It deliberately has no
// Hit/Miss counters: hit-ratio reporting is not a concern of this cache.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Removed is called once per removal, tagged with why.
	Removed(cause RemovalCause)
	// Size reports the resident entry count and accounted size after a
	// mutation.
	Size(entries int, size int64)
	// InFlight reports the number of producers currently running.
	InFlight(n int)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing. It is
// safe for concurrent use and is the default when no backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) Removed(RemovalCause) {}
func (NoopMetrics) Size(int, int64)      {}
func (NoopMetrics) InFlight(int)         {}

var _ Metrics = NoopMetrics{}
