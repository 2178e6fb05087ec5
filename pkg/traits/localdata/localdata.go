// Package localdata gives receivers a keyed scratch store kept in their
// state. Receivers declare Store; the state implements Provider.
package localdata

import (
	"reflect"
	"sort"
	"sync"

	"mercator-hq/interpose/pkg/dispatch"
)

// Store is the contract the feature adds to receivers.
type Store interface {
	LocalValue(key string) any
	SetLocalValue(key string, value any)
	RemoveLocalValue(key string) any
	LocalKeys() []string
	ClearLocal()
	ComputeLocalIfAbsent(key string, fn func(key string) any) any
}

// Provider is the state contract: it exposes the table backing Store.
type Provider interface {
	LocalTable() *Table
}

var (
	// StoreType is the reflect.Type of Store.
	StoreType = reflect.TypeOf((*Store)(nil)).Elem()

	// ProviderType is the reflect.Type of Provider.
	ProviderType = reflect.TypeOf((*Provider)(nil)).Elem()
)

// RuleName is the name of the feature's rule.
const RuleName = "localdata"

// Table is a concurrent string-keyed map. The zero Table is ready to use.
type Table struct {
	mu     sync.Mutex
	values map[string]any
}

// Get returns the value for key, or nil.
func (t *Table) Get(key string) any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.values[key]
}

// Set stores value under key. A nil value removes the key.
func (t *Table) Set(key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if value == nil {
		delete(t.values, key)
		return
	}
	if t.values == nil {
		t.values = make(map[string]any)
	}
	t.values[key] = value
}

// Remove deletes key and returns its previous value.
func (t *Table) Remove(key string) any {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.values[key]
	delete(t.values, key)
	return v
}

// Keys returns the stored keys in sorted order.
func (t *Table) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes every key.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values = nil
}

// ComputeIfAbsent returns the value for key, storing fn(key) first when the
// key is absent. fn runs under the table lock and must not use the table.
func (t *Table) ComputeIfAbsent(key string, fn func(string) any) any {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.values[key]; ok {
		return v
	}
	v := fn(key)
	if v == nil {
		return nil
	}
	if t.values == nil {
		t.values = make(map[string]any)
	}
	t.values[key] = v
	return v
}

// Len returns the number of keys.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

// Feature is the local data feature.
type Feature struct{}

// New returns the local data feature.
func New() *Feature { return &Feature{} }

// RequiredContract returns ProviderType.
func (*Feature) RequiredContract() reflect.Type { return ProviderType }

// Contracts returns StoreType, which receivers of the recipe implement.
func (*Feature) Contracts() []reflect.Type { return []reflect.Type{StoreType} }

// String returns the feature name.
func (*Feature) String() string { return RuleName }

// Rules returns one direct rule binding every Store method.
func (*Feature) Rules() []dispatch.Rule {
	return []dispatch.Rule{dispatch.Direct(RuleName, bind)}
}

func bind(d dispatch.Descriptor, _ Provider) (dispatch.BoundHandler, error) {
	if d.Contract != StoreType {
		return nil, nil
	}
	var fn func(t *Table, args []any) any
	switch d.Name {
	case "LocalValue":
		fn = func(t *Table, args []any) any { return t.Get(args[0].(string)) }
	case "SetLocalValue":
		fn = func(t *Table, args []any) any { t.Set(args[0].(string), args[1]); return nil }
	case "RemoveLocalValue":
		fn = func(t *Table, args []any) any { return t.Remove(args[0].(string)) }
	case "LocalKeys":
		fn = func(t *Table, _ []any) any { return t.Keys() }
	case "ClearLocal":
		fn = func(t *Table, _ []any) any { t.Clear(); return nil }
	case "ComputeLocalIfAbsent":
		fn = func(t *Table, args []any) any {
			return t.ComputeIfAbsent(args[0].(string), args[1].(func(string) any))
		}
	default:
		return nil, nil
	}
	return dispatch.Bound(func(inv dispatch.Invocation, p Provider, _ dispatch.Continuation) (any, error) {
		return fn(p.LocalTable(), inv.Args), nil
	}), nil
}
