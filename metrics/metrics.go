// Package metrics exports statement cache events as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/krisalay/statement-cache/types"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "stmtcache"

// Metrics implements types.Metrics on top of Prometheus counters.
type Metrics struct {
	Hits        prometheus.Counter
	Misses      prometheus.Counter
	Stores      prometheus.Counter
	Expirations prometheus.Counter
	Evictions   *prometheus.CounterVec
}

var _ types.Metrics = (*Metrics)(nil)

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hits_total",
			Help:      "Lookups that returned a fresh cached value",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "misses_total",
			Help:      "Lookups that found an empty slot, another key, or a stale entry",
		}),
		Stores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stores_total",
			Help:      "Entries written into a slot",
		}),
		Expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expirations_total",
			Help:      "Stale entries cleared by a lookup",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evictions_total",
			Help:      "Entries removed from their slot, by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Stores, m.Expirations, m.Evictions)
	return m
}

func (m *Metrics) Hit()    { m.Hits.Inc() }
func (m *Metrics) Miss()   { m.Misses.Inc() }
func (m *Metrics) Store()  { m.Stores.Inc() }
func (m *Metrics) Expire() { m.Expirations.Inc() }

func (m *Metrics) Eviction(reason string) {
	m.Evictions.WithLabelValues(reason).Inc()
}

// Occupancy is implemented by caches that can count their occupied slots.
type Occupancy interface {
	Occupied() int
	Capacity() int
}

// RegisterOccupancy exposes slot usage of c as gauges evaluated at scrape time.
func RegisterOccupancy(reg prometheus.Registerer, namespace string, c Occupancy) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "occupied_slots",
			Help:      "Slots currently holding an entry, stale or not",
		}, func() float64 { return float64(c.Occupied()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "capacity_slots",
			Help:      "Total number of slots",
		}, func() float64 { return float64(c.Capacity()) }),
	)
}
