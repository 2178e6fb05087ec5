package dispatch

import (
	"fmt"
	"reflect"
)

// RuleKind tags the two shapes a Rule can take.
type RuleKind uint8

const (
	// KindPredicate rules match, build a context, then handle.
	KindPredicate RuleKind = iota + 1

	// KindDirect rules bind a handler in one step.
	KindDirect
)

// String returns the kind name.
func (k RuleKind) String() string {
	switch k {
	case KindPredicate:
		return "predicate"
	case KindDirect:
		return "direct"
	default:
		return "invalid"
	}
}

// Rule is a classification rule. It decides whether a call is handled and,
// if so, produces the bound handler for it.
//
// Rules are values built with Predicate, Func or Direct and are immutable
// once built. The zero Rule never matches.
type Rule struct {
	name        string
	kind        RuleKind
	transparent bool
	identity    any

	match  func(Descriptor, any) bool
	build  func(Descriptor, any) (any, error)
	handle func(Invocation, any, any, Continuation) (any, error)

	bind func(Descriptor, any) (BoundHandler, error)
}

// RuleOption configures a Rule at construction time.
type RuleOption func(*Rule)

// Transparent marks the rule as taking part in a continuation chain instead
// of ending the scan.
func Transparent() RuleOption {
	return func(r *Rule) {
		r.transparent = true
	}
}

// WithIdentity attaches a cache identity to the rule. Rules whose behavior
// depends on captured data must report that data here, otherwise two rules
// capturing different values share cache entries.
//
// The value must be comparable. WithIdentity panics otherwise. A nil value
// clears the identity.
func WithIdentity(v any) RuleOption {
	if v != nil && !reflect.TypeOf(v).Comparable() {
		panic(fmt.Sprintf("dispatch: rule identity of type %T is not comparable", v))
	}
	return func(r *Rule) {
		r.identity = v
	}
}

// Predicate builds a rule from a match predicate, a context builder and a
// handler. build may be nil, in which case the handler receives the zero C.
//
// A state that is not an S never matches.
func Predicate[S, C any](
	name string,
	match func(d Descriptor, state S) bool,
	build func(d Descriptor, state S) (C, error),
	handle func(inv Invocation, ctx C, state S, next Continuation) (any, error),
	opts ...RuleOption,
) Rule {
	if match == nil || handle == nil {
		panic(fmt.Sprintf("dispatch: predicate rule %q requires match and handle", name))
	}
	r := Rule{
		name: name,
		kind: KindPredicate,
		match: func(d Descriptor, state any) bool {
			s, ok := state.(S)
			return ok && match(d, s)
		},
		build: func(d Descriptor, state any) (any, error) {
			if build == nil {
				var zero C
				return zero, nil
			}
			return build(d, state.(S))
		},
		handle: func(inv Invocation, ctx any, state any, next Continuation) (any, error) {
			s, ok := state.(S)
			if !ok {
				return nil, &StateTypeError{Descriptor: inv.Descriptor, State: state}
			}
			c, _ := ctx.(C)
			return handle(inv, c, s, next)
		},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Func builds a predicate rule that needs no context.
func Func[S any](
	name string,
	match func(d Descriptor, state S) bool,
	handle func(inv Invocation, state S, next Continuation) (any, error),
	opts ...RuleOption,
) Rule {
	if handle == nil {
		panic(fmt.Sprintf("dispatch: rule %q requires a handler", name))
	}
	return Predicate[S, struct{}](name, match, nil,
		func(inv Invocation, _ struct{}, state S, next Continuation) (any, error) {
			return handle(inv, state, next)
		}, opts...)
}

// Direct builds a rule whose context construction and dispatch cannot be
// separated. bind returns a nil handler when the rule does not apply.
//
// A state that is not an S never matches.
func Direct[S any](
	name string,
	bind func(d Descriptor, state S) (BoundHandler, error),
	opts ...RuleOption,
) Rule {
	if bind == nil {
		panic(fmt.Sprintf("dispatch: direct rule %q requires a bind function", name))
	}
	r := Rule{
		name: name,
		kind: KindDirect,
		bind: func(d Descriptor, state any) (BoundHandler, error) {
			s, ok := state.(S)
			if !ok {
				return nil, nil
			}
			return bind(d, s)
		},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// Name returns the rule name.
func (r Rule) Name() string { return r.name }

// Kind returns the rule kind.
func (r Rule) Kind() RuleKind { return r.kind }

// IsTransparent reports whether the rule participates in continuation chains.
func (r Rule) IsTransparent() bool { return r.transparent }

// Identity returns the rule's cache identity, if it has one.
func (r Rule) Identity() (any, bool) {
	return r.identity, r.identity != nil
}

// String returns a short description of the rule.
func (r Rule) String() string {
	mode := "terminal"
	if r.transparent {
		mode = "transparent"
	}
	if r.identity != nil {
		return fmt.Sprintf("%s[%s,%s,%v]", r.name, r.kind, mode, r.identity)
	}
	return fmt.Sprintf("%s[%s,%s]", r.name, r.kind, mode)
}

// tryBind attempts to match the rule against d and state. It reports whether
// the rule matched; a context build failure is returned as a *BuildError.
func (r Rule) tryBind(d Descriptor, state any) (BoundHandler, bool, error) {
	switch r.kind {
	case KindPredicate:
		if !r.match(d, state) {
			return nil, false, nil
		}
		ctx, err := r.build(d, state)
		if err != nil {
			return nil, false, &BuildError{Rule: r.name, Descriptor: d, Err: err}
		}
		return &predicateHandler{handle: r.handle, ctx: ctx}, true, nil

	case KindDirect:
		h, err := r.bind(d, state)
		if err != nil {
			return nil, false, &BuildError{Rule: r.name, Descriptor: d, Err: err}
		}
		if h == nil {
			return nil, false, nil
		}
		return h, true, nil

	default:
		return nil, false, nil
	}
}

type predicateHandler struct {
	handle func(Invocation, any, any, Continuation) (any, error)
	ctx    any
}

func (h *predicateHandler) Invoke(inv Invocation, state any, next Continuation) (any, error) {
	return h.handle(inv, h.ctx, state, next)
}
