// Package prom bridges cache metrics to Prometheus collectors.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/refcache/refcache/cache"
)

// Adapter feeds cache.Metrics signals into Prometheus. Every collector
// type underneath is goroutine-safe, so one Adapter can serve a cache
// shared by any number of goroutines.
type Adapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  *prometheus.CounterVec
	sizeEnt prometheus.Gauge
}

// New builds an Adapter and registers its collectors.
//
// A nil reg selects prometheus.DefaultRegisterer. ns and sub become the
// metric namespace and subsystem; constLabels, when non-nil, are stamped
// on every series. Registration conflicts panic, as MustRegister does.
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        name,
			Help:        help,
			ConstLabels: constLabels,
		}
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts(
			opts("hits_total", "Gets served from a resident entry."))),
		misses: prometheus.NewCounter(prometheus.CounterOpts(
			opts("misses_total", "Gets of absent or expired keys."))),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts(
			opts("evictions_total", "Entries the cache removed on its own, by reason.")),
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts(
			opts("size_entries", "Entries currently resident."))),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt)
	return a
}

// Hit counts a served Get.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss counts a Get that found nothing usable.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict counts a cache-initiated removal, labeled "clock" for capacity
// sweeps and "ttl" for lazy expiry.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(reasonLabel(r)).Inc()
}

// Size tracks the resident-entry gauge.
func (a *Adapter) Size(entries int) { a.sizeEnt.Set(float64(entries)) }

// reasonLabel keeps label values stable even if the reason enum grows.
func reasonLabel(r cache.EvictReason) string {
	switch r {
	case cache.EvictTTL:
		return "ttl"
	default:
		return "clock"
	}
}

var _ cache.Metrics = (*Adapter)(nil)
