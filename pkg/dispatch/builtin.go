package dispatch

import (
	"fmt"
	"hash/fnv"
	"reflect"
)

// StateAccessor is implemented by receivers that expose their dispatcher's
// state. The built-in state rule answers DispatchState calls.
type StateAccessor interface {
	DispatchState() any
}

// Names of the built-in rules.
const (
	RuleStateAccessor = "builtin.state"
	RuleString        = "builtin.string"
	RuleEqual         = "builtin.equal"
	RuleHash          = "builtin.hash"
	RuleDefaultBody   = "builtin.default"
)

var (
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	stringType = reflect.TypeOf("")
	boolType   = reflect.TypeOf(true)
	uint64Type = reflect.TypeOf(uint64(0))
)

// assemble places rules between the built-ins in the fixed precedence order:
// state accessor, caller rules, identity rules, implementation rules,
// default body.
func assemble(rules RuleSet, impl []Rule) RuleSet {
	return Concat(
		NewRuleSet(stateAccessorRule()),
		rules,
		NewRuleSet(stringRule(), equalRule(), hashRule()),
		NewRuleSet(impl...),
		NewRuleSet(defaultBodyRule()),
	)
}

func stateAccessorRule() Rule {
	return Func(RuleStateAccessor,
		func(d Descriptor, _ any) bool {
			return d.Name == "DispatchState" && d.NumIn() == 0 && d.NumOut() == 1 && d.Out(0) == anyType
		},
		func(_ Invocation, state any, _ Continuation) (any, error) {
			return state, nil
		})
}

func stringRule() Rule {
	return Func(RuleString,
		func(d Descriptor, _ any) bool {
			return d.Name == "String" && d.NumIn() == 0 && d.NumOut() == 1 && d.Out(0) == stringType
		},
		func(_ Invocation, state any, _ Continuation) (any, error) {
			return fmt.Sprintf("%v", state), nil
		})
}

// equalRule treats two receivers of the same concrete type as equal when
// their states are deeply equal.
func equalRule() Rule {
	return Func(RuleEqual,
		func(d Descriptor, _ any) bool {
			return d.Name == "Equal" && d.NumIn() == 1 && d.NumOut() == 1 && d.Out(0) == boolType
		},
		func(inv Invocation, state any, _ Continuation) (any, error) {
			other := inv.Arg(0)
			if other == nil {
				return false, nil
			}
			t := reflect.TypeOf(other)
			if t != reflect.TypeOf(inv.Receiver) {
				return false, nil
			}
			if t.Comparable() && other == inv.Receiver {
				return true, nil
			}
			acc, ok := other.(StateAccessor)
			if !ok {
				return false, nil
			}
			return reflect.DeepEqual(state, acc.DispatchState()), nil
		})
}

// hashRule agrees with equalRule: receivers of one type whose states are
// deeply equal hash alike.
func hashRule() Rule {
	return Func(RuleHash,
		func(d Descriptor, _ any) bool {
			return d.Name == "Hash" && d.NumIn() == 0 && d.NumOut() == 1 && d.Out(0) == uint64Type
		},
		func(inv Invocation, state any, _ Continuation) (any, error) {
			return hashState(reflect.TypeOf(inv.Receiver), state), nil
		})
}

func hashState(receiver reflect.Type, state any) uint64 {
	h := fnv.New64a()
	fmt.Fprint(h, receiver)
	writeHash(h, reflect.ValueOf(state), map[uintptr]bool{})
	return h.Sum64()
}

type hashWriter interface {
	Write(p []byte) (int, error)
}

// writeHash walks v the way reflect.DeepEqual does. Map entries are summed
// so iteration order does not matter.
func writeHash(h hashWriter, v reflect.Value, seen map[uintptr]bool) {
	if !v.IsValid() {
		h.Write([]byte{0})
		return
	}
	fmt.Fprint(h, v.Type())
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			h.Write([]byte{0})
			return
		}
		if seen[v.Pointer()] {
			return
		}
		seen[v.Pointer()] = true
		writeHash(h, v.Elem(), seen)
	case reflect.Interface:
		writeHash(h, v.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			writeHash(h, v.Field(i), seen)
		}
	case reflect.Slice, reflect.Array:
		fmt.Fprint(h, v.Len())
		for i := 0; i < v.Len(); i++ {
			writeHash(h, v.Index(i), seen)
		}
	case reflect.Map:
		var sum uint64
		iter := v.MapRange()
		for iter.Next() {
			entry := fnv.New64a()
			writeHash(entry, iter.Key(), seen)
			writeHash(entry, iter.Value(), seen)
			sum += entry.Sum64()
		}
		fmt.Fprint(h, v.Len(), sum)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		fmt.Fprint(h, v.IsNil())
	default:
		fmt.Fprint(h, v)
	}
}

func defaultBodyRule() Rule {
	return Func(RuleDefaultBody,
		func(d Descriptor, _ any) bool {
			return d.HasDefault
		},
		func(_ Invocation, _ any, next Continuation) (any, error) {
			return next.Call()
		})
}
