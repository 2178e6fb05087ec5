// Package telemetry groups the observability packages used by interpose.
//
//   - logging: slog construction with JSON, text and tint console output
//   - metrics: Prometheus collectors for the dispatch cache, recipe
//     verification and manifest reloads
//   - tracing: OpenTelemetry tracer provider setup and sampling
//   - health: liveness, readiness and version probes
//
// The dispatch engine reports through the dispatch.Observer interface, which
// metrics.Collector implements; nothing in the engine imports Prometheus
// directly.
package telemetry
