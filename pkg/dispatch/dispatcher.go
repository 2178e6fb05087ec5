package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"
)

// Dispatcher routes intercepted calls for one receiver through its rule set.
// A Dispatcher owns one state value and is safe for concurrent use as long
// as the state's own methods are.
type Dispatcher struct {
	id       uuid.UUID
	state    any
	rules    RuleSet
	identity Fingerprint
	cache    *Cache
	logger   *slog.Logger
}

// stateShape is the state's contribution to the identity vector.
type stateShape struct {
	Type reflect.Type
	Key  any
}

// NewDispatcher creates a dispatcher for state. The caller's rules are
// wrapped with the built-in rules unless cfg disables them. A nil cfg uses
// DefaultDispatcherConfig.
//
// The identity vector (scope, state shape, rule identities) is computed here
// once and reused for every call.
func NewDispatcher(state any, rules RuleSet, cfg *DispatcherConfig) (*Dispatcher, error) {
	if cfg == nil {
		cfg = DefaultDispatcherConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: state is required", ErrInvalidConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(nil)
	}

	assembled := rules.With(cfg.ImplementationRules...)
	if cfg.Builtins {
		assembled = assemble(rules, cfg.ImplementationRules)
	}

	shape := stateShape{Type: reflect.TypeOf(state)}
	if p, ok := state.(CacheKeyProvider); ok {
		k := p.DispatchKey()
		if k != nil && !reflect.TypeOf(k).Comparable() {
			return nil, fmt.Errorf("%w: state dispatch key of type %T is not comparable", ErrInvalidConfig, k)
		}
		shape.Key = k
	}

	vector := make([]any, 0, assembled.Len()+2)
	if cfg.Scope != nil {
		vector = append(vector, cfg.Scope)
	}
	vector = append(vector, shape)
	vector = append(vector, assembled.Identities()...)

	fp, err := cache.Fingerprint(vector)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		id:       uuid.New(),
		state:    state,
		rules:    assembled,
		identity: fp,
		cache:    cache,
		logger:   logger,
	}

	logger.Debug("dispatcher created",
		"dispatcher_id", d.id.String(),
		"state_type", shape.Type.String(),
		"rules", assembled.Len(),
		"fingerprint", uint64(fp),
	)

	return d, nil
}

// Dispatch handles one intercepted call. base runs the boundary layer's
// original behavior and may be nil when there is none.
//
// Resolution is cached per (receiver type, descriptor, identity vector).
// Errors returned by handlers reach the caller with any outer
// InvocationError removed.
func (d *Dispatcher) Dispatch(receiver any, desc Descriptor, args []any, base Base) (any, error) {
	return d.DispatchContext(context.Background(), receiver, desc, args, base)
}

// DispatchContext is Dispatch with a call context that rules can read from
// the Invocation.
func (d *Dispatcher) DispatchContext(ctx context.Context, receiver any, desc Descriptor, args []any, base Base) (any, error) {
	chain, err := d.Resolve(receiver, desc)
	if err != nil {
		return nil, err
	}
	inv := Invocation{Ctx: ctx, Receiver: receiver, Descriptor: desc, Args: args}
	result, err := chain.Invoke(inv, d.state, base)
	if err != nil {
		return nil, unwrapInvocation(err)
	}
	return result, nil
}

// Resolve returns the chain that handles desc on receiver, consulting the
// shared cache first.
func (d *Dispatcher) Resolve(receiver any, desc Descriptor) (*Chain, error) {
	key := d.Key(receiver, desc)
	return d.cache.GetOrResolve(key, func() (*Chain, error) {
		return Resolve(desc, d.rules, d.state)
	})
}

// Key returns the cache key for a call to desc on receiver.
func (d *Dispatcher) Key(receiver any, desc Descriptor) Key {
	return Key{
		Receiver:   reflect.TypeOf(receiver),
		Descriptor: desc,
		Identity:   d.identity,
	}
}

// ID returns the dispatcher's instance id.
func (d *Dispatcher) ID() uuid.UUID { return d.id }

// State returns the dispatcher's state.
func (d *Dispatcher) State() any { return d.state }

// Rules returns the assembled rule set, built-ins included.
func (d *Dispatcher) Rules() RuleSet { return d.rules }

// Fingerprint returns the interned identity vector.
func (d *Dispatcher) Fingerprint() Fingerprint { return d.identity }

// Cache returns the dispatch cache the dispatcher resolves through.
func (d *Dispatcher) Cache() *Cache { return d.cache }
