// Package dispatch provides the interception rule engine: it turns "a call
// arrived on a receiver" into "run this specific, possibly chained, handler".
//
// # Architecture
//
// The engine has four parts:
//
//  1. Rules - classification rules built with Predicate, Func or Direct
//  2. RuleSet - an ordered, immutable list of rules; order is precedence
//  3. Resolve - the match and compose engine producing a Chain
//  4. Cache - a concurrent map from Key to Chain shared by dispatchers
//
// # Resolution Flow
//
//	Dispatch(receiver, descriptor, args, base)
//	       ↓
//	Key = (receiver type, descriptor, identity fingerprint)
//	       ↓
//	Cache hit? → run cached Chain
//	       ↓ miss
//	For each rule in order:
//	  Match? → record link
//	    Transparent → keep scanning
//	    Terminal    → stop
//	       ↓
//	No links → unsupported chain
//	       ↓
//	Store Chain (first writer wins) → run it
//
// # Precedence
//
// NewDispatcher wraps the caller's rules with built-in rules in a fixed
// order:
//
//  1. builtin.state   - DispatchState() any returns the dispatcher state
//  2. caller rules
//  3. builtin.string  - String() string renders the state
//  4. builtin.equal   - Equal(any) bool compares states
//  5. builtin.hash    - Hash() uint64 hashes the state, consistent with Equal
//  6. implementation rules (DispatcherConfig.ImplementationRules)
//  7. builtin.default - methods with a default body run the base
//
// # Cache Identity
//
// A rule whose behavior depends on captured data reports that data through
// WithIdentity. The dispatcher collects the scope, the state shape and every
// rule identity once, interns the vector into a Fingerprint and uses it in
// every key. Two dispatchers that differ only in a captured identity never
// share cache entries.
//
// # Basic Usage
//
//	getter := dispatch.Func("getter", isGetter, readProperty)
//	cache := dispatch.NewCache(nil)
//
//	d, err := dispatch.NewDispatcher(state, dispatch.NewRuleSet(getter),
//	    dispatch.DefaultDispatcherConfig().WithCache(cache))
//	if err != nil {
//	    return err
//	}
//
//	name, err := d.Dispatch(receiver, getNameDesc, nil, nil)
//	if errors.Is(err, dispatch.ErrUnsupportedCall) {
//	    // no rule handled the call
//	}
package dispatch
