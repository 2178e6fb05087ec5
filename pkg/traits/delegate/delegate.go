// Package delegate forwards a contract's methods to a sub-object reached
// through the state.
//
// The Accessor that reaches the sub-object is part of the rule's cache
// identity, so two delegate features over the same contract but different
// accessors never share resolved chains.
package delegate

import (
	"errors"
	"fmt"
	"reflect"

	"mercator-hq/interpose/pkg/dispatch"
)

// RuleName is the name of the delegation rule.
const RuleName = "delegate"

// ErrNoTarget indicates the accessor produced no delegation target.
var ErrNoTarget = errors.New("no delegation target")

// Accessor reaches the delegation target from a state. Identity must return
// a comparable value that distinguishes accessors with different behavior.
type Accessor interface {
	Target(state any) (any, error)
	Identity() any
}

// Field selects an exported field of a struct state, or of the struct a
// pointer state points to.
type Field string

// Target returns the field value.
func (f Field) Target(state any) (any, error) {
	v := reflect.ValueOf(state)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: field %s of nil state", ErrNoTarget, string(f))
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: state %T is not a struct", ErrNoTarget, state)
	}
	fv := v.FieldByName(string(f))
	if !fv.IsValid() || !fv.CanInterface() {
		return nil, fmt.Errorf("%w: state %T has no exported field %s", ErrNoTarget, state, string(f))
	}
	return fv.Interface(), nil
}

// Identity returns the field name.
func (f Field) Identity() any { return f }

// Self uses the state itself as the target.
type Self struct{}

// Target returns state.
func (Self) Target(state any) (any, error) { return state, nil }

// Identity returns Self{}.
func (Self) Identity() any { return Self{} }

type funcAccessor struct {
	name string
	fn   func(state any) (any, error)
}

type funcIdentity struct{ name string }

// Func wraps a function as an Accessor. The name is its identity: functions
// that behave differently must have different names.
func Func(name string, fn func(state any) (any, error)) Accessor {
	return &funcAccessor{name: name, fn: fn}
}

func (a *funcAccessor) Target(state any) (any, error) { return a.fn(state) }
func (a *funcAccessor) Identity() any                 { return funcIdentity{name: a.name} }

// Feature delegates a contract to the target reached by an Accessor.
type Feature struct {
	contract reflect.Type
	accessor Accessor
}

type ruleIdentity struct {
	contract reflect.Type
	accessor any
}

// New returns a delegation feature. contract must be an interface.
func New(contract reflect.Type, accessor Accessor) (*Feature, error) {
	if contract == nil || contract.Kind() != reflect.Interface {
		return nil, fmt.Errorf("delegate: contract must be an interface type, got %v", contract)
	}
	if accessor == nil {
		return nil, errors.New("delegate: accessor is required")
	}
	id := accessor.Identity()
	if id == nil || !reflect.TypeOf(id).Comparable() {
		return nil, fmt.Errorf("delegate: accessor identity %T is not comparable", id)
	}
	return &Feature{contract: contract, accessor: accessor}, nil
}

// RequiredContract returns the delegated contract, which the target must
// implement.
func (f *Feature) RequiredContract() reflect.Type { return f.contract }

// Contracts returns the delegated contract.
func (f *Feature) Contracts() []reflect.Type { return []reflect.Type{f.contract} }

// VerifyState checks the target reached from state instead of the state.
func (f *Feature) VerifyState(state any) bool {
	target, err := f.accessor.Target(state)
	if err != nil || isNil(target) {
		return false
	}
	return reflect.TypeOf(target).Implements(f.contract)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// String returns the feature name.
func (f *Feature) String() string {
	return fmt.Sprintf("delegate(%s via %v)", f.contract, f.accessor.Identity())
}

// Rules returns the delegation rule.
func (f *Feature) Rules() []dispatch.Rule {
	return []dispatch.Rule{
		dispatch.Predicate(RuleName, f.match, buildMethod, f.invoke,
			dispatch.WithIdentity(ruleIdentity{contract: f.contract, accessor: f.accessor.Identity()})),
	}
}

// match accepts methods whose name and signature appear on the contract.
func (f *Feature) match(d dispatch.Descriptor, _ any) bool {
	m, ok := f.contract.MethodByName(d.Name)
	return ok && m.Type == d.Signature
}

func buildMethod(d dispatch.Descriptor, _ any) (string, error) {
	return d.Name, nil
}

func (f *Feature) invoke(inv dispatch.Invocation, method string, state any, _ dispatch.Continuation) (any, error) {
	target, err := f.accessor.Target(state)
	if err != nil {
		return nil, err
	}
	if isNil(target) {
		return nil, fmt.Errorf("%w for %s", ErrNoTarget, inv.Descriptor)
	}
	m := reflect.ValueOf(target).MethodByName(method)
	if !m.IsValid() {
		return nil, fmt.Errorf("%w: %T has no method %s", ErrNoTarget, target, method)
	}

	d := inv.Descriptor
	in := make([]reflect.Value, d.NumIn())
	for i := range in {
		if a := inv.Arg(i); a != nil {
			in[i] = reflect.ValueOf(a)
		} else {
			in[i] = reflect.Zero(d.In(i))
		}
	}

	var out []reflect.Value
	if d.Signature.IsVariadic() {
		out = m.CallSlice(in)
	} else {
		out = m.Call(in)
	}
	return splitResults(d, out)
}

// splitResults returns the first non-error result and the trailing error.
// A returned error is wrapped in an InvocationError, which the dispatcher
// strips before the caller sees it.
func splitResults(d dispatch.Descriptor, out []reflect.Value) (any, error) {
	if d.ReturnsError() {
		last := out[len(out)-1]
		if !last.IsNil() {
			return nil, &dispatch.InvocationError{Err: last.Interface().(error)}
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0].Interface(), nil
}
