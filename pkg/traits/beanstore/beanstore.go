// Package beanstore provides rules that back Get/Is/Set/Add/Remove methods
// with a property store held by the state.
//
// A method GetName or IsActive reads property "name" or "active"; SetName
// writes it. AddTag appends to the list property "tag" and RemoveTag removes
// the first equal element. Reading a property that was never written yields
// the zero value of the method's result type.
package beanstore

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"mercator-hq/interpose/pkg/dispatch"
)

// Store is the state contract required by the bean rules. A storage error
// is returned to the caller of the intercepted method.
type Store interface {
	Property(name string) (value any, found bool, err error)
	SetProperty(name string, value any) error
}

// StoreType is the reflect.Type of Store.
var StoreType = reflect.TypeOf((*Store)(nil)).Elem()

// Mode selects which methods the rules apply to.
type Mode string

const (
	// ModeAll handles every matching accessor.
	ModeAll Mode = "all"

	// ModeAbstract leaves methods with a default body to that body.
	ModeAbstract Mode = "abstract"
)

// Rule names.
const (
	RuleGet    = "beanstore.get"
	RuleSet    = "beanstore.set"
	RuleAdd    = "beanstore.add"
	RuleRemove = "beanstore.remove"
)

// Feature is the bean property feature.
type Feature struct {
	mode Mode
}

// New returns a bean feature in the given mode. An empty mode means ModeAll.
func New(mode Mode) (*Feature, error) {
	switch mode {
	case "":
		mode = ModeAll
	case ModeAll, ModeAbstract:
	default:
		return nil, fmt.Errorf("beanstore: unknown mode %q", mode)
	}
	return &Feature{mode: mode}, nil
}

// RequiredContract returns StoreType.
func (f *Feature) RequiredContract() reflect.Type { return StoreType }

// String returns the feature name.
func (f *Feature) String() string { return "beanstore(" + string(f.mode) + ")" }

// Rules returns the getter, setter, adder and remover rules.
func (f *Feature) Rules() []dispatch.Rule {
	id := dispatch.WithIdentity(f.mode)
	return []dispatch.Rule{
		dispatch.Predicate(RuleGet, f.applies(isGetter), buildProperty, get, id),
		dispatch.Predicate(RuleSet, f.applies(isSetter), buildProperty, set, id),
		dispatch.Predicate(RuleAdd, f.applies(isAdder), buildProperty, add, id),
		dispatch.Predicate(RuleRemove, f.applies(isRemover), buildProperty, remove, id),
	}
}

func (f *Feature) applies(match func(dispatch.Descriptor) bool) func(dispatch.Descriptor, Store) bool {
	return func(d dispatch.Descriptor, _ Store) bool {
		if f.mode == ModeAbstract && d.HasDefault {
			return false
		}
		return match(d)
	}
}

// accessor reports the property prefix of a bean-style method name, or ""
// when the name is not an accessor.
func accessor(name string) string {
	for _, prefix := range []string{"Get", "Set", "Is", "Add", "Remove"} {
		if rest, ok := strings.CutPrefix(name, prefix); ok && rest != "" {
			r, _ := utf8.DecodeRuneInString(rest)
			if unicode.IsUpper(r) {
				return prefix
			}
		}
	}
	return ""
}

// onlyErrorResult reports whether d returns nothing or just an error.
func onlyErrorResult(d dispatch.Descriptor) bool {
	return d.NumOut() == 0 || (d.NumOut() == 1 && d.ReturnsError())
}

func isGetter(d dispatch.Descriptor) bool {
	if d.NumIn() != 0 || d.ResultType() == nil {
		return false
	}
	if d.NumOut() > 2 || (d.NumOut() == 2 && !d.ReturnsError()) {
		return false
	}
	switch accessor(d.Name) {
	case "Get":
		return true
	case "Is":
		return d.ResultType().Kind() == reflect.Bool
	}
	return false
}

func isSetter(d dispatch.Descriptor) bool {
	return accessor(d.Name) == "Set" && d.NumIn() == 1 && onlyErrorResult(d)
}

func isAdder(d dispatch.Descriptor) bool {
	return accessor(d.Name) == "Add" && d.NumIn() == 1 && onlyErrorResult(d)
}

func isRemover(d dispatch.Descriptor) bool {
	if accessor(d.Name) != "Remove" || d.NumIn() != 1 {
		return false
	}
	if onlyErrorResult(d) {
		return true
	}
	rt := d.ResultType()
	return rt != nil && rt.Kind() == reflect.Bool
}

// PropertyName derives the property name from an accessor method name:
// GetName -> name, IsActive -> active, GetURL -> URL.
func PropertyName(method string) string {
	rest := strings.TrimPrefix(method, accessor(method))
	runes := []rune(rest)
	if len(runes) == 0 {
		return ""
	}
	if len(runes) > 1 && unicode.IsUpper(runes[0]) && unicode.IsUpper(runes[1]) {
		return rest
	}
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

func buildProperty(d dispatch.Descriptor, _ Store) (string, error) {
	name := PropertyName(d.Name)
	if name == "" {
		return "", fmt.Errorf("no property name in %q", d.Name)
	}
	return name, nil
}

func get(inv dispatch.Invocation, property string, s Store, _ dispatch.Continuation) (any, error) {
	v, _, err := s.Property(property)
	if err != nil {
		return nil, &dispatch.InvocationError{Err: err}
	}
	return convert(v, inv.Descriptor.ResultType())
}

func set(inv dispatch.Invocation, property string, s Store, _ dispatch.Continuation) (any, error) {
	if err := s.SetProperty(property, inv.Arg(0)); err != nil {
		return nil, &dispatch.InvocationError{Err: err}
	}
	return nil, nil
}

func add(inv dispatch.Invocation, property string, s Store, _ dispatch.Continuation) (any, error) {
	v, _, err := s.Property(property)
	if err != nil {
		return nil, &dispatch.InvocationError{Err: err}
	}
	list, _ := v.([]any)
	if err := s.SetProperty(property, append(append([]any(nil), list...), inv.Arg(0))); err != nil {
		return nil, &dispatch.InvocationError{Err: err}
	}
	return nil, nil
}

func remove(inv dispatch.Invocation, property string, s Store, _ dispatch.Continuation) (any, error) {
	v, _, err := s.Property(property)
	if err != nil {
		return nil, &dispatch.InvocationError{Err: err}
	}
	list, _ := v.([]any)
	for i, item := range list {
		if reflect.DeepEqual(item, inv.Arg(0)) {
			out := make([]any, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			if err := s.SetProperty(property, out); err != nil {
				return nil, &dispatch.InvocationError{Err: err}
			}
			return true, nil
		}
	}
	return false, nil
}

// convert adapts a stored value to the accessor's result type. List
// properties are stored as []any and converted element-wise.
func convert(v any, to reflect.Type) (any, error) {
	list, ok := v.([]any)
	if !ok || to == nil || to.Kind() != reflect.Slice {
		return dispatch.Convert(v, to)
	}
	if to.Elem().Kind() == reflect.Interface && reflect.TypeOf(list).AssignableTo(to) {
		return list, nil
	}
	out := reflect.MakeSlice(to, 0, len(list))
	for _, item := range list {
		e, err := dispatch.Convert(item, to.Elem())
		if err != nil {
			return nil, err
		}
		ev := reflect.ValueOf(e)
		if !ev.IsValid() {
			ev = reflect.Zero(to.Elem())
		}
		out = reflect.Append(out, ev)
	}
	return out.Interface(), nil
}
