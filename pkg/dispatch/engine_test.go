package dispatch

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"unicode"
)

type Person interface {
	GetName() string
	SetName(name string)
}

type Calculator interface {
	ComputeValue() int
}

var (
	personType     = reflect.TypeOf((*Person)(nil)).Elem()
	calculatorType = reflect.TypeOf((*Calculator)(nil)).Elem()
)

type propState struct {
	mu    sync.Mutex
	props map[string]any
}

func newPropState(kv ...any) *propState {
	s := &propState{props: make(map[string]any)}
	for i := 0; i+1 < len(kv); i += 2 {
		s.props[kv[i].(string)] = kv[i+1]
	}
	return s
}

func propertyName(method, prefix string) string {
	r := []rune(strings.TrimPrefix(method, prefix))
	if len(r) == 0 {
		return ""
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

func getterRule() Rule {
	return Func("getter",
		func(d Descriptor, _ *propState) bool {
			return strings.HasPrefix(d.Name, "Get") && d.NumIn() == 0 && d.NumOut() == 1
		},
		func(inv Invocation, s *propState, _ Continuation) (any, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.props[propertyName(inv.Descriptor.Name, "Get")], nil
		})
}

func setterRule() Rule {
	return Func("setter",
		func(d Descriptor, _ *propState) bool {
			return strings.HasPrefix(d.Name, "Set") && d.NumIn() == 1 && d.NumOut() == 0
		},
		func(inv Invocation, s *propState, _ Continuation) (any, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.props[propertyName(inv.Descriptor.Name, "Set")] = inv.Arg(0)
			return nil, nil
		})
}

// recorder collects the order in which handlers and the base run.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func recordingRule(rec *recorder, name string, transparent bool) Rule {
	opts := []RuleOption{}
	if transparent {
		opts = append(opts, Transparent())
	}
	return Func(name,
		func(Descriptor, any) bool { return true },
		func(_ Invocation, _ any, next Continuation) (any, error) {
			rec.add(name)
			return next.Call()
		}, opts...)
}

func baseFor(rec *recorder, result any) Base {
	return func() (any, error) {
		rec.add("base")
		return result, nil
	}
}

type receiver struct{}

func TestResolve_Precedence(t *testing.T) {
	rec := &recorder{}
	rules := NewRuleSet(
		recordingRule(rec, "A", false),
		recordingRule(rec, "B", true),
	)
	desc := MustDescriptor(calculatorType, "ComputeValue")

	chain, err := Resolve(desc, rules, struct{}{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if chain.Len() != 1 {
		t.Fatalf("chain.Len() = %d, want 1", chain.Len())
	}

	inv := Invocation{Receiver: receiver{}, Descriptor: desc}
	if _, err := chain.Invoke(inv, struct{}{}, baseFor(rec, 1)); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	want := []string{"A", "base"}
	if got := rec.get(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestResolve_Chaining(t *testing.T) {
	tests := []struct {
		name  string
		rules func(rec *recorder) RuleSet
		want  []string
		links string
	}{
		{
			name: "transparent then terminal",
			rules: func(rec *recorder) RuleSet {
				return NewRuleSet(
					recordingRule(rec, "A", true),
					recordingRule(rec, "B", true),
					recordingRule(rec, "C", false),
				)
			},
			want:  []string{"A", "B", "C", "base"},
			links: "A -> B -> C -> base",
		},
		{
			name: "transparent only",
			rules: func(rec *recorder) RuleSet {
				return NewRuleSet(
					recordingRule(rec, "A", true),
					recordingRule(rec, "B", true),
				)
			},
			want:  []string{"A", "B", "base"},
			links: "A -> B -> base",
		},
		{
			name: "terminal stops before later rules",
			rules: func(rec *recorder) RuleSet {
				return NewRuleSet(
					recordingRule(rec, "A", true),
					recordingRule(rec, "B", false),
					recordingRule(rec, "C", true),
				)
			},
			want:  []string{"A", "B", "base"},
			links: "A -> B -> base",
		},
	}

	desc := MustDescriptor(calculatorType, "ComputeValue")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			chain, err := Resolve(desc, tt.rules(rec), struct{}{})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if chain.String() != tt.links {
				t.Errorf("chain = %q, want %q", chain.String(), tt.links)
			}

			got, err := chain.Invoke(Invocation{Descriptor: desc}, struct{}{}, baseFor(rec, 42))
			if err != nil {
				t.Fatalf("Invoke() error = %v", err)
			}
			if got != 42 {
				t.Errorf("Invoke() = %v, want 42", got)
			}
			if calls := rec.get(); !reflect.DeepEqual(calls, tt.want) {
				t.Errorf("calls = %v, want %v", calls, tt.want)
			}
		})
	}
}

func TestResolve_NoMatch(t *testing.T) {
	desc := MustDescriptor(calculatorType, "ComputeValue")

	tests := []struct {
		name string
		base Base
	}{
		{name: "no base", base: nil},
		{name: "base present", base: func() (any, error) { return 1, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := Resolve(desc, NewRuleSet(), struct{}{})
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if !chain.Unsupported() {
				t.Error("chain.Unsupported() = false, want true")
			}

			got, err := chain.Invoke(Invocation{Descriptor: desc}, struct{}{}, tt.base)
			if got != nil {
				t.Errorf("Invoke() = %v, want nil", got)
			}
			var uce *UnsupportedCallError
			if !errors.As(err, &uce) {
				t.Fatalf("Invoke() error = %v, want *UnsupportedCallError", err)
			}
			if uce.Descriptor != desc {
				t.Errorf("error descriptor = %v, want %v", uce.Descriptor, desc)
			}
			if !errors.Is(err, ErrUnsupportedCall) {
				t.Error("errors.Is(err, ErrUnsupportedCall) = false")
			}
		})
	}
}

func TestResolve_TerminalWithoutBase(t *testing.T) {
	rec := &recorder{}
	desc := MustDescriptor(calculatorType, "ComputeValue")
	chain, err := Resolve(desc, NewRuleSet(recordingRule(rec, "A", true)), struct{}{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	_, err = chain.Invoke(Invocation{Descriptor: desc}, struct{}{}, nil)
	if !errors.Is(err, ErrUnsupportedCall) {
		t.Errorf("Invoke() error = %v, want ErrUnsupportedCall", err)
	}
	if calls := rec.get(); !reflect.DeepEqual(calls, []string{"A"}) {
		t.Errorf("calls = %v, want [A]", calls)
	}
}

func TestResolve_Determinism(t *testing.T) {
	rules := NewRuleSet(getterRule(), setterRule())
	state := newPropState("name", "Ada")

	for _, name := range []string{"GetName", "SetName"} {
		desc := MustDescriptor(personType, name)
		first, err := Resolve(desc, rules, state)
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", name, err)
		}
		second, err := Resolve(desc, rules, state)
		if err != nil {
			t.Fatalf("Resolve(%s) error = %v", name, err)
		}
		if !reflect.DeepEqual(first.Links(), second.Links()) {
			t.Errorf("Resolve(%s) links differ: %v vs %v", name, first.Links(), second.Links())
		}
	}
}

func TestResolve_StateTypeMismatch(t *testing.T) {
	desc := MustDescriptor(personType, "GetName")
	chain, err := Resolve(desc, NewRuleSet(getterRule()), "not a prop state")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !chain.Unsupported() {
		t.Error("rule typed for *propState matched a string state")
	}
}

func TestResolve_DirectRule(t *testing.T) {
	desc := MustDescriptor(personType, "GetName")
	direct := Direct("direct", func(d Descriptor, s *propState) (BoundHandler, error) {
		if d.Name != "GetName" {
			return nil, nil
		}
		return Bound(func(Invocation, *propState, Continuation) (any, error) {
			return "direct", nil
		}), nil
	})

	chain, err := Resolve(desc, NewRuleSet(direct, getterRule()), newPropState("name", "Ada"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	got, err := chain.Invoke(Invocation{Descriptor: desc}, newPropState(), nil)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got != "direct" {
		t.Errorf("Invoke() = %v, want direct", got)
	}

	setDesc := MustDescriptor(personType, "SetName")
	chain, err = Resolve(setDesc, NewRuleSet(direct), newPropState())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !chain.Unsupported() {
		t.Error("direct rule returning nil handler should not match")
	}
}

func TestPredicate_ContextIsBuiltOnce(t *testing.T) {
	builds := 0
	rule := Predicate("ctx",
		func(Descriptor, any) bool { return true },
		func(d Descriptor, _ any) (string, error) {
			builds++
			return "ctx:" + d.Name, nil
		},
		func(_ Invocation, ctx string, _ any, _ Continuation) (any, error) {
			return ctx, nil
		})

	desc := MustDescriptor(calculatorType, "ComputeValue")
	chain, err := Resolve(desc, NewRuleSet(rule), struct{}{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := chain.Invoke(Invocation{Descriptor: desc}, struct{}{}, nil)
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if got != "ctx:ComputeValue" {
			t.Errorf("Invoke() = %v, want ctx:ComputeValue", got)
		}
	}
	if builds != 1 {
		t.Errorf("context built %d times, want 1", builds)
	}
}

func TestWithIdentity_PanicsOnNonComparable(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("WithIdentity([]string) did not panic")
		}
	}()
	WithIdentity([]string{"a"})
}

func TestRule_String(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{
			name: "terminal predicate",
			rule: Func("get", func(Descriptor, any) bool { return true }, func(Invocation, any, Continuation) (any, error) { return nil, nil }),
			want: "get[predicate,terminal]",
		},
		{
			name: "transparent with identity",
			rule: Func("log", func(Descriptor, any) bool { return true }, func(Invocation, any, Continuation) (any, error) { return nil, nil },
				Transparent(), WithIdentity("audit")),
			want: "log[predicate,transparent,audit]",
		},
		{
			name: "direct",
			rule: Direct("bind", func(Descriptor, any) (BoundHandler, error) { return nil, nil }),
			want: "bind[direct,terminal]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

type ctxKey struct{}

func TestProceed_CarriesDerivedInvocation(t *testing.T) {
	var seen []any
	tag := func(name string) Rule {
		return Func(name,
			func(Descriptor, any) bool { return true },
			func(inv Invocation, _ any, next Continuation) (any, error) {
				seen = append(seen, inv.Context().Value(ctxKey{}))
				return Proceed(next, inv.WithContext(context.WithValue(inv.Context(), ctxKey{}, name)))
			}, Transparent())
	}
	desc := MustDescriptor(calculatorType, "ComputeValue")
	chain, err := Resolve(desc, NewRuleSet(tag("outer"), tag("inner")), struct{}{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	ctx := context.WithValue(context.Background(), ctxKey{}, "caller")
	got, err := chain.Invoke(Invocation{Ctx: ctx, Descriptor: desc}, struct{}{}, func() (any, error) { return 7, nil })
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if got != 7 {
		t.Errorf("Invoke() = %v, want 7", got)
	}
	if want := []any{"caller", "outer"}; !reflect.DeepEqual(seen, want) {
		t.Errorf("contexts seen = %v, want %v", seen, want)
	}
}

func TestProceed_PlainContinuation(t *testing.T) {
	called := false
	next := ContinuationFunc(func() (any, error) {
		called = true
		return nil, nil
	})
	if _, err := Proceed(next, Invocation{}); err != nil {
		t.Fatalf("Proceed() error = %v", err)
	}
	if !called {
		t.Error("Proceed() did not run the continuation")
	}
	if (Invocation{}).Context() != context.Background() {
		t.Error("zero Invocation.Context() is not Background")
	}
}
