package dispatch

import "context"

// Invocation carries one intercepted call. It is passed by value into every
// link of a chain, so links never share mutable call state.
type Invocation struct {
	// Ctx is the call context. Nil means context.Background().
	Ctx context.Context

	// Receiver is the object the call was made on.
	Receiver any

	// Descriptor identifies the called method.
	Descriptor Descriptor

	// Args are the call arguments in declaration order.
	Args []any
}

// Arg returns the i'th argument, or nil when it is out of range.
func (inv Invocation) Arg(i int) any {
	if i < 0 || i >= len(inv.Args) {
		return nil
	}
	return inv.Args[i]
}

// Context returns the call context, or context.Background() when none was
// given.
func (inv Invocation) Context() context.Context {
	if inv.Ctx == nil {
		return context.Background()
	}
	return inv.Ctx
}

// WithContext returns a copy of inv carrying ctx.
func (inv Invocation) WithContext(ctx context.Context) Invocation {
	inv.Ctx = ctx
	return inv
}

// Continuation runs the rest of a chain: the next bound handler, the base
// implementation, or a terminal failure. A continuation is built per call and
// must not be retained after the handler returns.
type Continuation interface {
	Call() (any, error)
}

// InvocationContinuation is a Continuation that can run the rest of the
// chain with a derived invocation, typically one carrying a new context.
type InvocationContinuation interface {
	Continuation
	CallWith(inv Invocation) (any, error)
}

// Proceed runs next with inv when next supports it and falls back to
// next.Call() otherwise.
func Proceed(next Continuation, inv Invocation) (any, error) {
	if ic, ok := next.(InvocationContinuation); ok {
		return ic.CallWith(inv)
	}
	return next.Call()
}

// ContinuationFunc is an adapter to allow ordinary functions to be used as
// continuations.
type ContinuationFunc func() (any, error)

// Call calls f().
func (f ContinuationFunc) Call() (any, error) {
	return f()
}

// Base is the boundary layer's base implementation for a call. A nil Base
// means the method has no implementation to fall back to.
type Base func() (any, error)

// BoundHandler is a rule already matched against a descriptor and state.
// It holds only the context captured at bind time and may be invoked
// repeatedly and concurrently.
type BoundHandler interface {
	Invoke(inv Invocation, state any, next Continuation) (any, error)
}

// HandlerFunc is an adapter to allow ordinary functions to be used as bound
// handlers.
type HandlerFunc func(inv Invocation, state any, next Continuation) (any, error)

// Invoke calls f(inv, state, next).
func (f HandlerFunc) Invoke(inv Invocation, state any, next Continuation) (any, error) {
	return f(inv, state, next)
}

// Bound wraps a typed handler body as a BoundHandler. The state is asserted
// to S on each call; a state of another type yields an InvocationError.
func Bound[S any](fn func(inv Invocation, state S, next Continuation) (any, error)) BoundHandler {
	return HandlerFunc(func(inv Invocation, state any, next Continuation) (any, error) {
		s, ok := state.(S)
		if !ok {
			return nil, &InvocationError{Err: &StateTypeError{Descriptor: inv.Descriptor, State: state}}
		}
		return fn(inv, s, next)
	})
}
