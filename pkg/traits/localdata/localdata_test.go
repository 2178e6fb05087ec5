package localdata_test

import (
	"reflect"
	"sync"
	"testing"

	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/recipe"
	"mercator-hq/interpose/pkg/state"
	"mercator-hq/interpose/pkg/stub"
	"mercator-hq/interpose/pkg/traits/localdata"
)

type storeStub struct{ stub.Proxy }

func (s *storeStub) LocalValue(key string) any {
	return stub.Must[any](s.Invoke("LocalValue", key))
}

func (s *storeStub) SetLocalValue(key string, value any) {
	stub.Must[any](s.Invoke("SetLocalValue", key, value))
}

func (s *storeStub) RemoveLocalValue(key string) any {
	return stub.Must[any](s.Invoke("RemoveLocalValue", key))
}

func (s *storeStub) LocalKeys() []string { return stub.Must[[]string](s.Invoke("LocalKeys")) }
func (s *storeStub) ClearLocal()         { stub.Must[any](s.Invoke("ClearLocal")) }

func (s *storeStub) ComputeLocalIfAbsent(key string, fn func(key string) any) any {
	return stub.Must[any](s.Invoke("ComputeLocalIfAbsent", key, fn))
}

var _ localdata.Store = (*storeStub)(nil)

func newStore(t *testing.T, b *state.Bucket) *storeStub {
	t.Helper()
	r := recipe.New([]recipe.FeatureProvider{localdata.New()}, nil, nil)
	d, err := r.NewDispatcher(b, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	s := &storeStub{}
	s.Bind(s, d, stub.NewCatalog(), r.Contracts()...)
	return s
}

func TestLocalData_Operations(t *testing.T) {
	b := state.NewBucket(nil)
	s := newStore(t, b)

	if got := s.LocalValue("missing"); got != nil {
		t.Errorf("LocalValue(missing) = %v, want nil", got)
	}

	s.SetLocalValue("b", 2)
	s.SetLocalValue("a", "one")
	if got, want := s.LocalKeys(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("LocalKeys() = %v, want %v", got, want)
	}
	if got := s.LocalValue("b"); got != 2 {
		t.Errorf("LocalValue(b) = %v, want 2", got)
	}
	if got := b.LocalTable().Get("a"); got != "one" {
		t.Errorf("state table a = %v, want one", got)
	}

	if got := s.RemoveLocalValue("a"); got != "one" {
		t.Errorf("RemoveLocalValue(a) = %v, want one", got)
	}
	if got := s.RemoveLocalValue("a"); got != nil {
		t.Errorf("RemoveLocalValue(a) twice = %v, want nil", got)
	}

	s.ClearLocal()
	if got := s.LocalKeys(); len(got) != 0 {
		t.Errorf("LocalKeys() after ClearLocal = %v, want empty", got)
	}
}

func TestLocalData_ComputeIfAbsent(t *testing.T) {
	s := newStore(t, state.NewBucket(nil))

	calls := 0
	fn := func(key string) any {
		calls++
		return key + "!"
	}
	if got := s.ComputeLocalIfAbsent("hi", fn); got != "hi!" {
		t.Errorf("ComputeLocalIfAbsent() = %v, want hi!", got)
	}
	if got := s.ComputeLocalIfAbsent("hi", fn); got != "hi!" {
		t.Errorf("ComputeLocalIfAbsent() second = %v, want hi!", got)
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}

	if got := s.ComputeLocalIfAbsent("nil", func(string) any { return nil }); got != nil {
		t.Errorf("ComputeLocalIfAbsent(nil result) = %v, want nil", got)
	}
	if got := s.LocalKeys(); !reflect.DeepEqual(got, []string{"hi"}) {
		t.Errorf("LocalKeys() = %v, want [hi]", got)
	}
}

func TestLocalData_StateWithoutTableIsRejected(t *testing.T) {
	r := recipe.New([]recipe.FeatureProvider{localdata.New()}, nil, nil)
	_, err := r.NewDispatcher(struct{ Name string }{"x"}, nil)
	if err == nil {
		t.Fatal("NewDispatcher() error = nil, want verification error")
	}
	if _, ok := err.(*recipe.VerificationError); !ok {
		t.Errorf("NewDispatcher() error = %T, want *recipe.VerificationError", err)
	}
}

func TestLocalData_UnrelatedMethodsDoNotMatch(t *testing.T) {
	type other interface{ LocalValue(key string) any }
	desc := dispatch.MustDescriptor(reflect.TypeOf((*other)(nil)).Elem(), "LocalValue")

	chain, err := dispatch.Resolve(desc, dispatch.NewRuleSet(localdata.New().Rules()...), state.NewBucket(nil))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !chain.Unsupported() {
		t.Errorf("chain = %s, want unsupported", chain)
	}
}

func TestTable_Concurrent(t *testing.T) {
	var table localdata.Table
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			table.ComputeIfAbsent("shared", func(string) any { return i })
			table.Set("k", i)
		}()
	}
	wg.Wait()

	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	table.Set("k", nil)
	if table.Len() != 1 {
		t.Errorf("Len() after nil Set = %d, want 1", table.Len())
	}
}
