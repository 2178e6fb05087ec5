package interpose

import (
	"reflect"

	"mercator-hq/interpose/pkg/dispatch"
	"mercator-hq/interpose/pkg/recipe"
	"mercator-hq/interpose/pkg/stub"
)

// Binder is implemented by stubs that embed stub.Proxy.
type Binder interface {
	Bind(self any, d *dispatch.Dispatcher, catalog *stub.Catalog, contracts ...reflect.Type)
}

// Build creates a receiver of stub type T over state using r. The receiver
// is bound to a dispatcher on the runtime's cache, and r's post-construction
// callback runs before Build returns.
//
//	p, err := interpose.Build[personStub](rt, r, state.NewBucket(nil))
func Build[T any, PT interface {
	*T
	Binder
}](rt *Runtime, r *recipe.Recipe, state any) (PT, error) {
	d, err := rt.NewDispatcher(r, state)
	if err != nil {
		return nil, err
	}
	p := PT(new(T))
	p.Bind(p, d, rt.stubs, r.Contracts()...)
	r.Created(p, state)
	return p, nil
}

// Create is Build with the recipe looked up by name in the loaded manifest.
func Create[T any, PT interface {
	*T
	Binder
}](rt *Runtime, recipeName string, state any) (PT, error) {
	r, err := rt.Recipe(recipeName)
	if err != nil {
		return nil, err
	}
	return Build[T, PT](rt, r, state)
}
