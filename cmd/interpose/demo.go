package main

import (
	"errors"
	"fmt"
	"reflect"

	"mercator-hq/interpose/pkg/cli"
	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/interpose"
	"mercator-hq/interpose/pkg/recipe"
	"mercator-hq/interpose/pkg/state"
	"mercator-hq/interpose/pkg/stub"
	"mercator-hq/interpose/pkg/traits/localdata"
)

// Person is the demo contract manifests can name.
type Person interface {
	GetName() string
	SetName(name string)
	GetAge() int
	SetAge(age int)
	Greeting() string
}

var personType = dispatch.TypeOf[Person]()

// personStub implements Person and localdata.Store through dispatch.
type personStub struct{ stub.Proxy }

func (p *personStub) GetName() string     { return stub.Must[string](p.Invoke("GetName")) }
func (p *personStub) SetName(name string) { stub.Must[any](p.Invoke("SetName", name)) }
func (p *personStub) GetAge() int         { return stub.Must[int](p.Invoke("GetAge")) }
func (p *personStub) SetAge(age int)      { stub.Must[any](p.Invoke("SetAge", age)) }
func (p *personStub) Greeting() string    { return stub.Must[string](p.Invoke("Greeting")) }

func (p *personStub) LocalValue(key string) any { return stub.Must[any](p.Invoke("LocalValue", key)) }
func (p *personStub) SetLocalValue(key string, value any) {
	stub.Must[any](p.Invoke("SetLocalValue", key, value))
}
func (p *personStub) RemoveLocalValue(key string) any {
	return stub.Must[any](p.Invoke("RemoveLocalValue", key))
}
func (p *personStub) LocalKeys() []string { return stub.Must[[]string](p.Invoke("LocalKeys")) }
func (p *personStub) ClearLocal()         { stub.Must[any](p.Invoke("ClearLocal")) }
func (p *personStub) ComputeLocalIfAbsent(key string, fn func(key string) any) any {
	return stub.Must[any](p.Invoke("ComputeLocalIfAbsent", key, fn))
}

var _ localdata.Store = (*personStub)(nil)

// Demo state kinds accepted by --state.
const (
	stateMemory = "memory"
	stateSQL    = "sql"
)

// registerDemo registers the demo contracts and default bodies.
func registerDemo(rt *interpose.Runtime) error {
	if err := rt.RegisterContract("Person", personType); err != nil {
		return err
	}
	if err := rt.RegisterContract("LocalStore", localdata.StoreType); err != nil {
		return err
	}
	return rt.RegisterDefault(personType, "Greeting", func(self any, _ []any) (any, error) {
		p := self.(Person)
		return fmt.Sprintf("Hello, %s (%d)", p.GetName(), p.GetAge()), nil
	})
}

// demoState returns the state a demo receiver runs over. Memory states are
// buckets seeded with a name and age; SQL states are objects of the
// configured state store.
func demoState(rt *interpose.Runtime, kind, id string) (any, error) {
	switch kind {
	case "", stateMemory:
		return state.NewBucket(map[string]any{"name": "Ada", "age": 36}), nil
	case stateSQL:
		store, err := rt.OpenState()
		if err != nil {
			return nil, cli.NewConfigError("state.path", "sql state needs a state store", err)
		}
		obj := store.Object(id)
		_, seeded, err := obj.Property("name")
		if err == nil && !seeded {
			err = errors.Join(obj.SetProperty("name", "Ada"), obj.SetProperty("age", 36))
		}
		if err != nil {
			return nil, cli.NewCommandError("state", err)
		}
		return obj, nil
	default:
		return nil, cli.NewConfigError("state", fmt.Sprintf("unknown state kind %q (valid: memory, sql)", kind), nil)
	}
}

// newPerson builds a demo receiver over st with r.
func newPerson(rt *interpose.Runtime, r *recipe.Recipe, st any) (*personStub, error) {
	if !implementsAll(r.Contracts()) {
		return nil, fmt.Errorf("recipe %q has contracts the demo receiver does not implement: %v", r.Name(), r.Contracts())
	}
	return interpose.Build[personStub](rt, r, st)
}

func implementsAll(contracts []reflect.Type) bool {
	recv := reflect.TypeOf((*personStub)(nil))
	for _, c := range contracts {
		if !recv.Implements(c) {
			return false
		}
	}
	return true
}
