package dispatch

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// ResultError reports a value that cannot be used as a method's result type.
type ResultError struct {
	Want reflect.Type
	Got  any
}

// Error returns the error message.
func (e *ResultError) Error() string {
	return fmt.Sprintf("value %v (%T) is not assignable to %s", e.Got, e.Got, e.Want)
}

// Convert adapts v to type to. A nil v yields the zero value of to. Values
// that are assignable pass through; numbers convert between numeric kinds
// and same-kind named types convert to each other. A json.Number is parsed
// directly into the target kind. Conversions that would overflow, truncate
// a fraction or turn a number into a string are a *ResultError.
func Convert(v any, to reflect.Type) (any, error) {
	if to == nil {
		return v, nil
	}
	if v == nil {
		return reflect.Zero(to).Interface(), nil
	}
	if n, ok := v.(json.Number); ok && isNumber(to.Kind()) {
		return convertJSONNumber(n, to)
	}
	rv := reflect.ValueOf(v)
	from := rv.Type()
	if from.AssignableTo(to) {
		return v, nil
	}
	if from.Kind() == to.Kind() && from.ConvertibleTo(to) {
		return rv.Convert(to).Interface(), nil
	}
	if isNumber(from.Kind()) && isNumber(to.Kind()) {
		out := reflect.New(to).Elem()
		if !setNumber(out, rv) {
			return nil, &ResultError{Want: to, Got: v}
		}
		return out.Interface(), nil
	}
	return nil, &ResultError{Want: to, Got: v}
}

// setNumber stores the numeric value in into out. It reports false when
// the value does not fit out's kind exactly.
func setNumber(out, in reflect.Value) bool {
	switch {
	case isInt(in.Kind()):
		i := in.Int()
		switch {
		case isInt(out.Kind()):
			if out.OverflowInt(i) {
				return false
			}
			out.SetInt(i)
		case isUint(out.Kind()):
			if i < 0 || out.OverflowUint(uint64(i)) {
				return false
			}
			out.SetUint(uint64(i))
		default:
			out.SetFloat(float64(i))
		}
	case isUint(in.Kind()):
		u := in.Uint()
		switch {
		case isInt(out.Kind()):
			if u > 1<<63-1 || out.OverflowInt(int64(u)) {
				return false
			}
			out.SetInt(int64(u))
		case isUint(out.Kind()):
			if out.OverflowUint(u) {
				return false
			}
			out.SetUint(u)
		default:
			out.SetFloat(float64(u))
		}
	default:
		f := in.Float()
		switch {
		case isInt(out.Kind()):
			i := int64(f)
			if float64(i) != f || out.OverflowInt(i) {
				return false
			}
			out.SetInt(i)
		case isUint(out.Kind()):
			u := uint64(f)
			if f < 0 || float64(u) != f || out.OverflowUint(u) {
				return false
			}
			out.SetUint(u)
		default:
			if out.OverflowFloat(f) {
				return false
			}
			out.SetFloat(f)
		}
	}
	return true
}

func convertJSONNumber(n json.Number, to reflect.Type) (any, error) {
	out := reflect.New(to).Elem()
	switch {
	case isInt(to.Kind()):
		i, err := strconv.ParseInt(n.String(), 10, 64)
		if err != nil || out.OverflowInt(i) {
			return nil, &ResultError{Want: to, Got: n}
		}
		out.SetInt(i)
	case isUint(to.Kind()):
		u, err := strconv.ParseUint(n.String(), 10, 64)
		if err != nil || out.OverflowUint(u) {
			return nil, &ResultError{Want: to, Got: n}
		}
		out.SetUint(u)
	default:
		f, err := n.Float64()
		if err != nil || out.OverflowFloat(f) {
			return nil, &ResultError{Want: to, Got: n}
		}
		out.SetFloat(f)
	}
	return out.Interface(), nil
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
