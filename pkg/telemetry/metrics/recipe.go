package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/interpose/pkg/config"
)

// RecipeMetrics tracks recipe state verification.
//
// Metrics:
//   - interpose_dispatch_verifications_total{state_type,result}: fresh checks
//   - interpose_dispatch_verification_cache_hits_total: checks answered from
//     the per-type cache
type RecipeMetrics struct {
	verificationsTotal *prometheus.CounterVec
	cacheHitsTotal     prometheus.Counter
}

// NewRecipeMetrics creates and registers recipe metrics with registry.
func NewRecipeMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RecipeMetrics {
	rm := &RecipeMetrics{
		verificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verifications_total",
				Help:      "Total number of state verifications by state type and result",
			},
			[]string{"state_type", "result"},
		),

		cacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "verification_cache_hits_total",
				Help:      "Total number of verifications answered from the type cache",
			},
		),
	}

	registry.MustRegister(rm.verificationsTotal, rm.cacheHitsTotal)
	return rm
}

// RecordVerification records one verification.
func (rm *RecipeMetrics) RecordVerification(stateType string, cached bool, err error) {
	if cached {
		rm.cacheHitsTotal.Inc()
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	rm.verificationsTotal.WithLabelValues(stateType, result).Inc()
}
