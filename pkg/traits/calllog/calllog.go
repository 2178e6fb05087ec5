// Package calllog provides a transparent rule that logs entry and exit of
// every intercepted call.
package calllog

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"

	"mercator-hq/interpose/pkg/dispatch"
)

// RuleName is the name of the logging rule.
const RuleName = "calllog"

// Feature logs calls through a slog.Logger.
type Feature struct {
	label  string
	level  slog.Level
	logger *slog.Logger
}

type identity struct {
	label  string
	level  slog.Level
	logger *slog.Logger
}

// New returns a logging feature. A nil logger uses slog.Default().
func New(label string, level slog.Level, logger *slog.Logger) *Feature {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feature{label: label, level: level, logger: logger}
}

// RequiredContract returns nil; the rule works with any state.
func (f *Feature) RequiredContract() reflect.Type { return nil }

// String returns the feature name.
func (f *Feature) String() string { return RuleName + "(" + f.label + ")" }

// Rules returns the transparent logging rule.
func (f *Feature) Rules() []dispatch.Rule {
	return []dispatch.Rule{
		dispatch.Func(RuleName+"."+f.label,
			func(dispatch.Descriptor, any) bool { return true },
			f.handle,
			dispatch.Transparent(),
			dispatch.WithIdentity(identity{label: f.label, level: f.level, logger: f.logger}),
		),
	}
}

func (f *Feature) handle(inv dispatch.Invocation, _ any, next dispatch.Continuation) (any, error) {
	ctx := context.Background()
	if !f.logger.Enabled(ctx, f.level) {
		return next.Call()
	}

	callID := uuid.NewString()
	method := inv.Descriptor.String()
	f.logger.Log(ctx, f.level, "call started",
		"label", f.label,
		"call_id", callID,
		"method", method,
		"args", len(inv.Args),
	)

	start := time.Now()
	result, err := next.Call()
	duration := time.Since(start)

	if err != nil {
		f.logger.Log(ctx, f.level, "call failed",
			"label", f.label,
			"call_id", callID,
			"method", method,
			"duration", duration,
			"error", err,
		)
		return result, err
	}

	f.logger.Log(ctx, f.level, "call finished",
		"label", f.label,
		"call_id", callID,
		"method", method,
		"duration", duration,
	)
	return result, nil
}
