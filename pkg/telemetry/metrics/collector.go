package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/interpose/pkg/config"
)

// Collector owns the Prometheus registry and every interpose metric.
//
// It implements dispatch.Observer and recipe.Observer, so a single
// collector can be handed to caches and recipes:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	cache := dispatch.NewCache(collector)
//	r := recipe.New(providers, contracts, nil, recipe.WithObserver(collector))
//
// All Record methods are safe for concurrent use and do nothing when
// metrics are disabled.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	cacheMetrics    *CacheMetrics
	recipeMetrics   *RecipeMetrics
	manifestMetrics *ManifestMetrics

	// Bounds the state_type label.
	cardinalityLimiter *CardinalityLimiter
}

// NewCollector creates a collector registering into registry. A nil
// registry gets a fresh one.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.ResolveDurationBuckets) == 0 {
		cfg.ResolveDurationBuckets = append([]float64(nil), config.DefaultResolveDurationBuckets...)
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		cacheMetrics:       NewCacheMetrics(cfg, registry),
		recipeMetrics:      NewRecipeMetrics(cfg, registry),
		manifestMetrics:    NewManifestMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// RecordCacheLookup counts a dispatch cache hit or miss.
func (c *Collector) RecordCacheLookup(hit bool) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordLookup(hit)
}

// RecordResolution records a chain resolution and its latency. outcome is
// one of the dispatch.Outcome constants.
func (c *Collector) RecordResolution(outcome string, d time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordResolution(outcome, d)
}

// RecordCacheSize sets the dispatch cache entry gauge.
func (c *Collector) RecordCacheSize(entries int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.SetEntries(entries)
}

// RecordCacheClear counts a cache clear triggered by source ("manual",
// "schedule", "manifest").
func (c *Collector) RecordCacheClear(source string, removed int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordClear(source, removed)
}

// RecordVerification records a recipe state verification.
func (c *Collector) RecordVerification(stateType string, cached bool, err error) {
	if !c.config.Enabled {
		return
	}
	if !c.cardinalityLimiter.Allow(stateType) {
		stateType = "other"
	}
	c.recipeMetrics.RecordVerification(stateType, cached, err)
}

// RecordManifestReload records a manifest load attempt.
func (c *Collector) RecordManifestReload(err error, recipes int) {
	if !c.config.Enabled {
		return
	}
	c.manifestMetrics.RecordReload(err, recipes)
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting at most maxCardinality
// distinct values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
