package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/interpose/pkg/config"
)

// CacheMetrics tracks the dispatch cache.
//
// Metrics:
//   - interpose_dispatch_cache_lookups_total{result}: hits and misses
//   - interpose_dispatch_resolutions_total{outcome}: chain resolutions
//   - interpose_dispatch_resolve_duration_seconds{outcome}: resolution latency
//   - interpose_dispatch_cache_entries: current number of cached chains
//   - interpose_dispatch_cache_clears_total{source}: clears by trigger
//   - interpose_dispatch_cache_cleared_entries_total: chains dropped by clears
type CacheMetrics struct {
	lookupsTotal        *prometheus.CounterVec
	resolutionsTotal    *prometheus.CounterVec
	resolveDuration     *prometheus.HistogramVec
	entries             prometheus.Gauge
	clearsTotal         *prometheus.CounterVec
	clearedEntriesTotal prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics with registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_lookups_total",
				Help:      "Total number of dispatch cache lookups by result",
			},
			[]string{"result"},
		),

		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "resolutions_total",
				Help:      "Total number of handler chain resolutions by outcome",
			},
			[]string{"outcome"},
		),

		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "resolve_duration_seconds",
				Help:      "Handler chain resolution latency in seconds",
				Buckets:   cfg.ResolveDurationBuckets,
			},
			[]string{"outcome"},
		),

		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_entries",
				Help:      "Current number of cached handler chains",
			},
		),

		clearsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_clears_total",
				Help:      "Total number of dispatch cache clears by source",
			},
			[]string{"source"},
		),

		clearedEntriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_cleared_entries_total",
				Help:      "Total number of cached chains dropped by clears",
			},
		),
	}

	registry.MustRegister(
		cm.lookupsTotal,
		cm.resolutionsTotal,
		cm.resolveDuration,
		cm.entries,
		cm.clearsTotal,
		cm.clearedEntriesTotal,
	)

	return cm
}

// RecordLookup counts a hit or a miss.
func (cm *CacheMetrics) RecordLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cm.lookupsTotal.WithLabelValues(result).Inc()
}

// RecordResolution counts a resolution and observes its latency.
func (cm *CacheMetrics) RecordResolution(outcome string, d time.Duration) {
	cm.resolutionsTotal.WithLabelValues(outcome).Inc()
	cm.resolveDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetEntries sets the entry gauge.
func (cm *CacheMetrics) SetEntries(n int) {
	cm.entries.Set(float64(n))
}

// RecordClear counts a clear and the chains it dropped.
func (cm *CacheMetrics) RecordClear(source string, removed int) {
	cm.clearsTotal.WithLabelValues(source).Inc()
	cm.clearedEntriesTotal.Add(float64(removed))
	cm.entries.Set(0)
}
