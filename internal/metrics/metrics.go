// Package metrics exposes cache and analytics counters as Prometheus
// collectors on a private registry.
package metrics

import (
	"github.com/bassista/go_happyhour/internal/cache"
	"github.com/bassista/go_happyhour/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// Collector implements cache.Observer and pipeline.Tracker.
type Collector struct {
	registry *prometheus.Registry

	cacheLookups    *prometheus.CounterVec
	analyticsEvents *prometheus.CounterVec
}

func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "happyhour"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by category and result (hit or miss)",
		},
		[]string{"category", "result"},
	)

	c.analyticsEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "events_total",
			Help:      "Analytics events emitted by the action pipeline",
		},
		[]string{"event"},
	)

	c.registry.MustRegister(c.cacheLookups, c.analyticsEvents)
	return c
}

// Registry returns the registry holding every collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) CacheHit(category cache.Category) {
	c.cacheLookups.WithLabelValues(string(category), resultHit).Inc()
}

func (c *Collector) CacheMiss(category cache.Category) {
	c.cacheLookups.WithLabelValues(string(category), resultMiss).Inc()
}

func (c *Collector) Track(ev pipeline.Event) {
	c.analyticsEvents.WithLabelValues(ev.Name).Inc()
}

// WatchCache registers gauges that read the store's aggregates on scrape.
func (c *Collector) WatchCache(namespace string, stats func() cache.Stats) {
	if namespace == "" {
		namespace = "happyhour"
	}
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "size_bytes",
			Help:      "Bytes held by cached images",
		}, func() float64 { return float64(stats().TotalCacheSize) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hit_ratio",
			Help:      "Hits divided by lookups since the last stats reset",
		}, func() float64 { return stats().HitRate }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "images",
			Help:      "Number of cached images",
		}, func() float64 { return float64(stats().Images) }),
	)
}

var (
	_ cache.Observer   = (*Collector)(nil)
	_ pipeline.Tracker = (*Collector)(nil)
)
