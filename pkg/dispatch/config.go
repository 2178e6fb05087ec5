package dispatch

import (
	"fmt"
	"log/slog"
	"reflect"
)

// DispatcherConfig contains configuration for a Dispatcher.
type DispatcherConfig struct {
	// Cache is the shared dispatch cache. When nil the dispatcher gets a
	// private cache, which is only useful in tests.
	Cache *Cache

	// Builtins wraps the caller's rules with the built-in rules.
	// Default: true.
	Builtins bool

	// ImplementationRules are placed after the built-in identity rules and
	// before the default-body rule.
	ImplementationRules []Rule

	// Scope is an extra cache identity placed ahead of every rule identity.
	// Composition roots set it to something that identifies the rule set, so
	// dispatchers built from different rule sets never share entries even
	// when their receivers have the same type.
	Scope any

	// Logger receives lifecycle events. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultDispatcherConfig returns the default dispatcher configuration.
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		Builtins: true,
	}
}

// Validate validates the dispatcher configuration.
func (c *DispatcherConfig) Validate() error {
	if c.Scope != nil && !reflect.TypeOf(c.Scope).Comparable() {
		return fmt.Errorf("%w: scope of type %T is not comparable", ErrInvalidConfig, c.Scope)
	}
	for i, r := range c.ImplementationRules {
		if r.kind != KindPredicate && r.kind != KindDirect {
			return fmt.Errorf("%w: implementation rule %d is not initialized", ErrInvalidConfig, i)
		}
	}
	return nil
}

// WithCache sets the shared dispatch cache.
func (c *DispatcherConfig) WithCache(cache *Cache) *DispatcherConfig {
	c.Cache = cache
	return c
}

// WithBuiltins enables or disables the built-in rules.
func (c *DispatcherConfig) WithBuiltins(enabled bool) *DispatcherConfig {
	c.Builtins = enabled
	return c
}

// WithImplementationRules sets the implementation-specific rules.
func (c *DispatcherConfig) WithImplementationRules(rules ...Rule) *DispatcherConfig {
	c.ImplementationRules = rules
	return c
}

// WithScope sets the rule-set scope identity.
func (c *DispatcherConfig) WithScope(scope any) *DispatcherConfig {
	c.Scope = scope
	return c
}

// WithLogger sets the logger.
func (c *DispatcherConfig) WithLogger(logger *slog.Logger) *DispatcherConfig {
	c.Logger = logger
	return c
}
