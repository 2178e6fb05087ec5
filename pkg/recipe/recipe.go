package recipe

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"mercator-hq/interpose/pkg/dispatch"
)

// FeatureProvider contributes rules and names the contract a state must
// satisfy for those rules to work.
type FeatureProvider interface {
	// RequiredContract returns the type the state must implement, or nil
	// when the feature places no requirement on the state.
	RequiredContract() reflect.Type

	// Rules returns the feature's rules in precedence order.
	Rules() []dispatch.Rule
}

// ContractIntroducer is implemented by providers that add contracts to the
// receivers built from a recipe.
type ContractIntroducer interface {
	Contracts() []reflect.Type
}

// StateVerifier is implemented by providers that check the state themselves,
// for example by projecting it onto a sub-object first. It is consulted only
// when the provider requires a contract.
type StateVerifier interface {
	VerifyState(state any) bool
}

// OnCreated is called after a receiver has been created and bound to its
// dispatcher.
type OnCreated func(receiver any, state any)

// Observer receives verification events.
type Observer interface {
	RecordVerification(stateType string, cached bool, err error)
}

// Recipe aggregates feature providers into one rule set and one contract
// list. It is immutable after New and safe for concurrent use.
type Recipe struct {
	name      string
	providers []FeatureProvider
	contracts []reflect.Type
	rules     dispatch.RuleSet
	callback  OnCreated

	verified sync.Map // reflect.Type -> struct{}
	observer Observer
	logger   *slog.Logger
}

// Option configures a Recipe.
type Option func(*Recipe)

// WithName names the recipe in logs and explain output.
func WithName(name string) Option {
	return func(r *Recipe) {
		r.name = name
	}
}

// WithObserver sets the verification observer.
func WithObserver(o Observer) Option {
	return func(r *Recipe) {
		r.observer = o
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recipe) {
		r.logger = logger
	}
}

// New builds a recipe. Contracts are the explicit contracts followed by the
// ones introduced by providers, deduplicated in first-seen order. Rules are
// the providers' rules in provider order. callback may be nil.
func New(providers []FeatureProvider, contracts []reflect.Type, callback OnCreated, opts ...Option) *Recipe {
	r := &Recipe{
		providers: append([]FeatureProvider(nil), providers...),
		callback:  callback,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	seen := make(map[reflect.Type]bool)
	add := func(t reflect.Type) {
		if t == nil || seen[t] {
			return
		}
		seen[t] = true
		r.contracts = append(r.contracts, t)
	}
	for _, c := range contracts {
		add(c)
	}

	var rules []dispatch.Rule
	for _, p := range r.providers {
		if ci, ok := p.(ContractIntroducer); ok {
			for _, c := range ci.Contracts() {
				add(c)
			}
		}
		rules = append(rules, p.Rules()...)
	}
	r.rules = dispatch.NewRuleSet(rules...)

	return r
}

// Name returns the recipe name.
func (r *Recipe) Name() string { return r.name }

// Contracts returns the combined contracts in order. The first entry is the
// primary contract.
func (r *Recipe) Contracts() []reflect.Type {
	return append([]reflect.Type(nil), r.contracts...)
}

// Providers returns the feature providers in order.
func (r *Recipe) Providers() []FeatureProvider {
	return append([]FeatureProvider(nil), r.providers...)
}

// RuleSet returns the combined rule set.
func (r *Recipe) RuleSet() dispatch.RuleSet { return r.rules }

// Verify checks that state satisfies every provider's required contract.
// A successful outcome is remembered per concrete state type.
func (r *Recipe) Verify(state any) error {
	st := reflect.TypeOf(state)
	if st == nil {
		return &VerificationError{Recipe: r.name}
	}
	if _, ok := r.verified.Load(st); ok {
		r.record(st, true, nil)
		return nil
	}

	for _, p := range r.providers {
		if err := r.verifyProvider(p, state, st); err != nil {
			r.record(st, false, err)
			return err
		}
	}

	r.verified.Store(st, struct{}{})
	r.record(st, false, nil)
	return nil
}

func (r *Recipe) verifyProvider(p FeatureProvider, state any, st reflect.Type) error {
	contract := p.RequiredContract()
	if contract == nil {
		return nil
	}
	if sv, ok := p.(StateVerifier); ok {
		if !sv.VerifyState(state) {
			return &VerificationError{Recipe: r.name, Contract: contract, StateType: st, Provider: providerName(p)}
		}
		return nil
	}
	if !satisfies(st, contract) {
		return &VerificationError{Recipe: r.name, Contract: contract, StateType: st, Provider: providerName(p)}
	}
	return nil
}

func satisfies(st, contract reflect.Type) bool {
	if contract.Kind() == reflect.Interface {
		return st.Implements(contract)
	}
	return st.AssignableTo(contract)
}

func (r *Recipe) record(st reflect.Type, cached bool, err error) {
	if r.observer != nil {
		r.observer.RecordVerification(st.String(), cached, err)
	}
	if err != nil {
		r.logger.Error("state verification failed", "recipe", r.name, "state_type", st.String(), "error", err)
	}
}

// NewDispatcher verifies state and builds a dispatcher over the recipe's
// rules. The recipe itself is used as the dispatcher scope so dispatchers
// from different recipes never share cache entries.
func (r *Recipe) NewDispatcher(state any, cfg *dispatch.DispatcherConfig) (*dispatch.Dispatcher, error) {
	if err := r.Verify(state); err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = dispatch.DefaultDispatcherConfig()
	}
	scoped := *cfg
	scoped.Scope = r
	if scoped.Logger == nil {
		scoped.Logger = r.logger
	}
	return dispatch.NewDispatcher(state, r.rules, &scoped)
}

// Created runs the post-construction callback, if any.
func (r *Recipe) Created(receiver any, state any) {
	if r.callback != nil {
		r.callback(receiver, state)
	}
}

// ClearTypeCache forgets every verified state type.
func (r *Recipe) ClearTypeCache() {
	r.verified.Range(func(k, _ any) bool {
		r.verified.Delete(k)
		return true
	})
}

// VerifiedTypes returns the number of state types verified so far.
func (r *Recipe) VerifiedTypes() int {
	n := 0
	r.verified.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func providerName(p FeatureProvider) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", p)
}
