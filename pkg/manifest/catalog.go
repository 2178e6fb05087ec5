package manifest

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/interpose/pkg/recipe"
	"mercator-hq/interpose/pkg/traits/beanstore"
	"mercator-hq/interpose/pkg/traits/calllog"
	"mercator-hq/interpose/pkg/traits/delegate"
	"mercator-hq/interpose/pkg/traits/localdata"
	"mercator-hq/interpose/pkg/traits/tracing"
)

// Factory builds a feature provider from manifest options.
type Factory func(opts Options) (recipe.FeatureProvider, error)

// Catalog maps the names used in manifests to contracts and feature
// factories. It is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	contracts map[string]reflect.Type
	features  map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		contracts: make(map[string]reflect.Type),
		features:  make(map[string]Factory),
	}
}

// RegisterContract makes an interface type available under name.
func (c *Catalog) RegisterContract(name string, contract reflect.Type) error {
	if name == "" {
		return fmt.Errorf("manifest: contract name is required")
	}
	if contract == nil || contract.Kind() != reflect.Interface {
		return fmt.Errorf("manifest: contract %q must be an interface type, got %v", name, contract)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.contracts[name]; ok && prev != contract {
		return fmt.Errorf("manifest: contract %q already registered as %v", name, prev)
	}
	c.contracts[name] = contract
	return nil
}

// RegisterFeature makes a feature factory available under name. A later
// registration under the same name replaces the earlier one.
func (c *Catalog) RegisterFeature(name string, factory Factory) error {
	if name == "" || factory == nil {
		return fmt.Errorf("manifest: feature name and factory are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.features[name] = factory
	return nil
}

// Contract looks up a contract by name.
func (c *Catalog) Contract(name string) (reflect.Type, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.contracts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContract, name)
	}
	return t, nil
}

// Feature looks up a feature factory by name.
func (c *Catalog) Feature(name string) (Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.features[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFeature, name)
	}
	return f, nil
}

// ContractNames returns the registered contract names, sorted.
func (c *Catalog) ContractNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.contracts)
}

// FeatureNames returns the registered feature names, sorted.
func (c *Catalog) FeatureNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.features)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Options are the options of one feature entry.
type Options struct {
	values  map[string]any
	catalog *Catalog
}

// NewOptions wraps values. catalog resolves contract-valued options and may
// be nil when no option names a contract.
func NewOptions(values map[string]any, catalog *Catalog) Options {
	return Options{values: values, catalog: catalog}
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

// String returns a string option or def when unset.
func (o Options) String(key, def string) (string, error) {
	v, ok := o.values[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %q: want string, got %T", key, v)
	}
	return s, nil
}

// Bool returns a boolean option or def when unset.
func (o Options) Bool(key string, def bool) (bool, error) {
	v, ok := o.values[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %q: want bool, got %T", key, v)
	}
	return b, nil
}

// Level returns a slog level option such as "debug" or "warn".
func (o Options) Level(key string, def slog.Level) (slog.Level, error) {
	s, err := o.String(key, "")
	if err != nil || s == "" {
		return def, err
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return def, fmt.Errorf("option %q: %w", key, err)
	}
	return lvl, nil
}

// Contract resolves a contract-valued option through the catalog.
func (o Options) Contract(key string) (reflect.Type, error) {
	name, err := o.String(key, "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("option %q is required", key)
	}
	if o.catalog == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContract, name)
	}
	return o.catalog.Contract(name)
}

// Unknown returns the option keys not in allowed, sorted.
func (o Options) Unknown(allowed ...string) []string {
	var out []string
	for k := range o.values {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func checkKnown(o Options, allowed ...string) error {
	if unknown := o.Unknown(allowed...); len(unknown) > 0 {
		return fmt.Errorf("unknown options %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Standard feature names.
const (
	FeatureBeanstore = "beanstore"
	FeatureLocalData = "localdata"
	FeatureDelegate  = "delegate"
	FeatureCallLog   = "calllog"
	FeatureTracing   = "tracing"
)

// RegisterStandardFeatures registers the features shipped with interpose.
// logger backs calllog and provider backs tracing; either may be nil.
//
//	beanstore  {mode: all|abstract}
//	localdata  {}
//	delegate   {contract: Name, field: FieldName}   field defaults to the state itself
//	calllog    {label: name, level: debug|info|warn|error}
//	tracing    {name: tracer-name}
func RegisterStandardFeatures(c *Catalog, logger *slog.Logger, provider trace.TracerProvider) error {
	factories := map[string]Factory{
		FeatureBeanstore: func(o Options) (recipe.FeatureProvider, error) {
			if err := checkKnown(o, "mode"); err != nil {
				return nil, err
			}
			mode, err := o.String("mode", string(beanstore.ModeAll))
			if err != nil {
				return nil, err
			}
			return beanstore.New(beanstore.Mode(mode))
		},
		FeatureLocalData: func(o Options) (recipe.FeatureProvider, error) {
			if err := checkKnown(o); err != nil {
				return nil, err
			}
			return localdata.New(), nil
		},
		FeatureDelegate: func(o Options) (recipe.FeatureProvider, error) {
			if err := checkKnown(o, "contract", "field"); err != nil {
				return nil, err
			}
			contract, err := o.Contract("contract")
			if err != nil {
				return nil, err
			}
			field, err := o.String("field", "")
			if err != nil {
				return nil, err
			}
			var accessor delegate.Accessor = delegate.Self{}
			if field != "" {
				accessor = delegate.Field(field)
			}
			return delegate.New(contract, accessor)
		},
		FeatureCallLog: func(o Options) (recipe.FeatureProvider, error) {
			if err := checkKnown(o, "label", "level"); err != nil {
				return nil, err
			}
			label, err := o.String("label", FeatureCallLog)
			if err != nil {
				return nil, err
			}
			level, err := o.Level("level", slog.LevelDebug)
			if err != nil {
				return nil, err
			}
			return calllog.New(label, level, logger), nil
		},
		FeatureTracing: func(o Options) (recipe.FeatureProvider, error) {
			if err := checkKnown(o, "name"); err != nil {
				return nil, err
			}
			name, err := o.String("name", "interpose")
			if err != nil {
				return nil, err
			}
			return tracing.New(name, provider), nil
		},
	}
	for name, f := range factories {
		if err := c.RegisterFeature(name, f); err != nil {
			return err
		}
	}
	return nil
}
