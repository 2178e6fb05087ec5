// Package tracing provides a transparent rule that records an OpenTelemetry
// span around every intercepted call.
package tracing

import (
	"reflect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/interpose/pkg/dispatch"
)

// RuleName is the name of the tracing rule.
const RuleName = "tracing"

// Attribute keys set on call spans.
const (
	AttrMethod   = attribute.Key("interpose.method")
	AttrContract = attribute.Key("interpose.contract")
	AttrArgs     = attribute.Key("interpose.args")
)

// Feature opens a span per call.
type Feature struct {
	name     string
	provider trace.TracerProvider
	tracer   trace.Tracer
}

type identity struct {
	name     string
	provider any
}

// New returns a tracing feature using the named tracer from provider. A nil
// provider uses the global provider.
func New(name string, provider trace.TracerProvider) *Feature {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &Feature{
		name:     name,
		provider: provider,
		tracer:   provider.Tracer(name),
	}
}

// RequiredContract returns nil; the rule works with any state.
func (f *Feature) RequiredContract() reflect.Type { return nil }

// String returns the feature name.
func (f *Feature) String() string { return RuleName + "(" + f.name + ")" }

// Rules returns the transparent tracing rule.
func (f *Feature) Rules() []dispatch.Rule {
	id := identity{name: f.name, provider: f.provider}
	if !reflect.TypeOf(f.provider).Comparable() {
		// Fall back to the feature itself so distinct providers never
		// share cached chains.
		id.provider = f
	}
	return []dispatch.Rule{
		dispatch.Func(RuleName+"."+f.name,
			func(dispatch.Descriptor, any) bool { return true },
			f.handle,
			dispatch.Transparent(),
			dispatch.WithIdentity(id),
		),
	}
}

func (f *Feature) handle(inv dispatch.Invocation, _ any, next dispatch.Continuation) (any, error) {
	d := inv.Descriptor
	attrs := []attribute.KeyValue{
		AttrMethod.String(d.Name),
		AttrArgs.Int(len(inv.Args)),
	}
	if d.Contract != nil {
		attrs = append(attrs, AttrContract.String(d.Contract.String()))
	}

	ctx, span := f.tracer.Start(inv.Context(), d.String(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	defer span.End()

	result, err := dispatch.Proceed(next, inv.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}
