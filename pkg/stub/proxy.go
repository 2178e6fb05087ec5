package stub

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"mercator-hq/interpose/pkg/dispatch"
)

// ErrUnbound indicates a Proxy was used before Bind.
var ErrUnbound = errors.New("stub proxy is not bound")

var accessorType = reflect.TypeOf((*dispatch.StateAccessor)(nil)).Elem()

// Proxy routes a hand-written stub's methods through a dispatcher. Stubs
// embed a Proxy and forward each method:
//
//	type personStub struct{ stub.Proxy }
//
//	func (p *personStub) GetName() string {
//	    return stub.Must[string](p.Invoke("GetName"))
//	}
//
// The embedding stub is the receiver seen by rules, so its concrete type is
// part of every cache key.
type Proxy struct {
	self       any
	dispatcher *dispatch.Dispatcher
	catalog    *Catalog
	contracts  []reflect.Type
}

// Bind attaches the proxy to its receiver, dispatcher and catalog.
// contracts lists the interfaces the receiver implements, primary first.
func (p *Proxy) Bind(self any, d *dispatch.Dispatcher, catalog *Catalog, contracts ...reflect.Type) {
	p.self = self
	p.dispatcher = d
	p.catalog = catalog
	p.contracts = append([]reflect.Type(nil), contracts...)
}

// Invoke dispatches a call to method. A registered default body, if any,
// serves as the base implementation.
func (p *Proxy) Invoke(method string, args ...any) (any, error) {
	return p.InvokeContext(context.Background(), method, args...)
}

// InvokeContext is Invoke with a call context.
func (p *Proxy) InvokeContext(ctx context.Context, method string, args ...any) (any, error) {
	contract, err := p.contractFor(method)
	if err != nil {
		return nil, err
	}
	desc, err := p.catalog.Descriptor(contract, method)
	if err != nil {
		return nil, err
	}
	var base dispatch.Base
	if fn, ok := p.catalog.Default(contract, method); ok {
		self := p.self
		base = func() (any, error) { return fn(self, args) }
	}
	return p.dispatcher.DispatchContext(ctx, p.self, desc, args, base)
}

// InvokeBase dispatches a call to a method the stub implements itself. base
// runs the stub's own body when the chain reaches it.
func (p *Proxy) InvokeBase(method string, base dispatch.Base, args ...any) (any, error) {
	contract, err := p.contractFor(method)
	if err != nil {
		return nil, err
	}
	desc, err := p.catalog.Descriptor(contract, method)
	if err != nil {
		return nil, err
	}
	return p.dispatcher.Dispatch(p.self, desc.WithDefault(), args, base)
}

// DispatchState returns the dispatcher state through the built-in state
// rule.
func (p *Proxy) DispatchState() any {
	if p.dispatcher == nil || p.catalog == nil {
		return nil
	}
	desc, err := p.catalog.Descriptor(accessorType, "DispatchState")
	if err != nil {
		return nil
	}
	v, err := p.dispatcher.Dispatch(p.self, desc, nil, nil)
	if err != nil {
		return nil
	}
	return v
}

// Dispatcher returns the bound dispatcher.
func (p *Proxy) Dispatcher() *dispatch.Dispatcher { return p.dispatcher }

// Contracts returns the receiver's contracts.
func (p *Proxy) Contracts() []reflect.Type {
	return append([]reflect.Type(nil), p.contracts...)
}

// contractFor returns the first contract declaring method.
func (p *Proxy) contractFor(method string) (reflect.Type, error) {
	if p.dispatcher == nil || p.catalog == nil {
		return nil, ErrUnbound
	}
	for _, c := range p.contracts {
		if _, ok := c.MethodByName(method); ok {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: no contract of %T declares %q", dispatch.ErrInvalidDescriptor, p.self, method)
}

// As converts a dispatch result to T. A nil result yields the zero T.
// Numeric results are converted to T's numeric kind.
func As[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	out, err := dispatch.Convert(v, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	return out.(T), nil
}

// Must is like As but panics on error.
func Must[T any](v any, err error) T {
	t, err := As[T](v, err)
	if err != nil {
		panic(err)
	}
	return t
}
