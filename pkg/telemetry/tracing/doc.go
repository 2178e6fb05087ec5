// Package tracing sets up OpenTelemetry for interpose.
//
// New builds a tracer provider that exports spans over OTLP gRPC and
// registers it, with the W3C trace context propagator, as the otel global.
// The call tracing trait (pkg/traits/tracing) takes Provider() and records
// one span per intercepted call.
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(ctx)
//
//	// calltracing is pkg/traits/tracing
//	feature := calltracing.New("person", tracer.Provider())
//
// Sampling is configured with telemetry.tracing.sampler: always, never,
// ratio or parent_based (the default).
package tracing
