package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/interpose/pkg/config"
)

// ManifestMetrics tracks recipe manifest loading.
//
// Metrics:
//   - interpose_dispatch_manifest_reloads_total{result}: load attempts
//   - interpose_dispatch_manifest_recipes: recipes in the active manifest
//   - interpose_dispatch_manifest_last_reload_timestamp_seconds: last success
type ManifestMetrics struct {
	reloadsTotal *prometheus.CounterVec
	recipes      prometheus.Gauge
	lastReload   prometheus.Gauge
}

// NewManifestMetrics creates and registers manifest metrics with registry.
func NewManifestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ManifestMetrics {
	mm := &ManifestMetrics{
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "manifest_reloads_total",
				Help:      "Total number of manifest loads by result",
			},
			[]string{"result"},
		),

		recipes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "manifest_recipes",
				Help:      "Number of recipes in the active manifest",
			},
		),

		lastReload: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "manifest_last_reload_timestamp_seconds",
				Help:      "Unix time of the last successful manifest load",
			},
		),
	}

	registry.MustRegister(mm.reloadsTotal, mm.recipes, mm.lastReload)
	return mm
}

// RecordReload records one load attempt. A failed load leaves the recipe
// gauge at the previous manifest's count.
func (mm *ManifestMetrics) RecordReload(err error, recipes int) {
	if err != nil {
		mm.reloadsTotal.WithLabelValues("failure").Inc()
		return
	}
	mm.reloadsTotal.WithLabelValues("success").Inc()
	mm.recipes.Set(float64(recipes))
	mm.lastReload.Set(float64(time.Now().Unix()))
}
