// Package metrics exposes dispatch engine metrics through Prometheus.
//
// # Metrics Categories
//
//   - Cache: lookups by hit or miss, entry count, clears
//   - Resolution: chain resolutions by outcome and their latency
//   - Verification: recipe state checks by state type and result
//   - Manifest: reload attempts, active recipe count, last reload time
//
// Metric names are prefixed with the configured namespace and subsystem,
// "interpose_dispatch_" by default.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	cache := dispatch.NewCache(collector)
//	http.Handle("/metrics", collector.Handler())
//
// The state_type label is capped by a CardinalityLimiter; overflow values
// are reported as "other".
package metrics
