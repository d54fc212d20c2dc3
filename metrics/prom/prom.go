package prom

import (
	"github.com/Mayaka-Apps/coalesce/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	removals  *prometheus.CounterVec
	sizeEnt   prometheus.Gauge
	sizeTotal prometheus.Gauge
	inFlight  prometheus.Gauge
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		removals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "removals_total",
				Help:        "Cache entry removals by cause",
				ConstLabels: constLabels,
			},
			[]string{"cause"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of resident entries",
			ConstLabels: constLabels,
		}),
		sizeTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_total",
			Help:        "Total accounted size of resident entries",
			ConstLabels: constLabels,
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "producers_in_flight",
			Help:        "Number of producers currently running",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.removals, a.sizeEnt, a.sizeTotal, a.inFlight)
	return a
}

// Removed increments the removal counter with a cause label.
func (a *Adapter) Removed(c cache.RemovalCause) {
	a.removals.WithLabelValues(causeLabel(c)).Inc()
}

// Size updates the resident entry count and total size gauges.
func (a *Adapter) Size(entries int, size int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeTotal.Set(float64(size))
}

// InFlight updates the in-flight producer count gauge.
func (a *Adapter) InFlight(n int) {
	a.inFlight.Set(float64(n))
}

// causeLabel maps RemovalCause to a stable label value.
func causeLabel(c cache.RemovalCause) string {
	switch c {
	case cache.CauseEviction:
		return "eviction"
	case cache.CauseClear:
		return "clear"
	case cache.CauseEvictAll:
		return "evict_all"
	case cache.CauseReplace:
		return "replace"
	case cache.CauseRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)
