package dispatch

import (
	"fmt"
	"reflect"
	"strings"
)

// Descriptor identifies an intercepted method signature.
//
// Descriptors are comparable and are used directly as part of the dispatch
// cache key. The boundary layer builds one per distinct method and reuses it.
type Descriptor struct {
	// Contract is the interface declaring the method. It may be nil for calls
	// that do not belong to a contract.
	Contract reflect.Type

	// Name is the method name.
	Name string

	// Signature is the method's func type without the receiver.
	Signature reflect.Type

	// HasDefault reports whether the method has a built-in default body that
	// the boundary layer can run as the base implementation.
	HasDefault bool
}

// TypeOf returns the reflect.Type of T. Unlike reflect.TypeOf it works for
// interface types.
func TypeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// DescriptorOf returns the descriptor for the named method of an interface
// contract.
func DescriptorOf(contract reflect.Type, name string) (Descriptor, error) {
	if contract == nil || contract.Kind() != reflect.Interface {
		return Descriptor{}, fmt.Errorf("%w: contract must be an interface type, got %v", ErrInvalidDescriptor, contract)
	}
	m, ok := contract.MethodByName(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s has no method %q", ErrInvalidDescriptor, contract, name)
	}
	return Descriptor{Contract: contract, Name: m.Name, Signature: m.Type}, nil
}

// MustDescriptor is like DescriptorOf but panics on error.
func MustDescriptor(contract reflect.Type, name string) Descriptor {
	d, err := DescriptorOf(contract, name)
	if err != nil {
		panic(err)
	}
	return d
}

// DescriptorsOf returns a descriptor for every method of an interface
// contract, in the order reflect reports them (sorted by name).
func DescriptorsOf(contract reflect.Type) ([]Descriptor, error) {
	if contract == nil || contract.Kind() != reflect.Interface {
		return nil, fmt.Errorf("%w: contract must be an interface type, got %v", ErrInvalidDescriptor, contract)
	}
	out := make([]Descriptor, 0, contract.NumMethod())
	for i := 0; i < contract.NumMethod(); i++ {
		m := contract.Method(i)
		out = append(out, Descriptor{Contract: contract, Name: m.Name, Signature: m.Type})
	}
	return out, nil
}

// FuncDescriptor builds a descriptor for a call that is not declared on an
// interface. fn must be a func value or a func type.
func FuncDescriptor(name string, fn any) Descriptor {
	t, ok := fn.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(fn)
	}
	if t == nil || t.Kind() != reflect.Func {
		panic(fmt.Sprintf("dispatch: FuncDescriptor(%q) requires a func, got %v", name, t))
	}
	return Descriptor{Name: name, Signature: t}
}

// WithDefault returns a copy of d marked as having a default body.
func (d Descriptor) WithDefault() Descriptor {
	d.HasDefault = true
	return d
}

// NumIn returns the number of parameters.
func (d Descriptor) NumIn() int {
	if d.Signature == nil {
		return 0
	}
	return d.Signature.NumIn()
}

// In returns the type of the i'th parameter.
func (d Descriptor) In(i int) reflect.Type {
	return d.Signature.In(i)
}

// NumOut returns the number of results.
func (d Descriptor) NumOut() int {
	if d.Signature == nil {
		return 0
	}
	return d.Signature.NumOut()
}

// Out returns the type of the i'th result.
func (d Descriptor) Out(i int) reflect.Type {
	return d.Signature.Out(i)
}

// ResultType returns the first result type that is not error, or nil when
// the method returns nothing but (optionally) an error.
func (d Descriptor) ResultType() reflect.Type {
	for i := 0; i < d.NumOut(); i++ {
		if t := d.Out(i); t != errorType {
			return t
		}
	}
	return nil
}

// ReturnsError reports whether the last result is an error.
func (d Descriptor) ReturnsError() bool {
	n := d.NumOut()
	return n > 0 && d.Out(n-1) == errorType
}

// String renders the descriptor as Contract.Name(params) results.
func (d Descriptor) String() string {
	var sb strings.Builder
	if d.Contract != nil {
		sb.WriteString(d.Contract.Name())
		sb.WriteByte('.')
	}
	sb.WriteString(d.Name)
	sb.WriteByte('(')
	for i := 0; i < d.NumIn(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(d.In(i).String())
	}
	sb.WriteByte(')')
	switch n := d.NumOut(); {
	case n == 1:
		sb.WriteByte(' ')
		sb.WriteString(d.Out(0).String())
	case n > 1:
		sb.WriteString(" (")
		for i := 0; i < n; i++ {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Out(i).String())
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
