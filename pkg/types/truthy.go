package types

import "reflect"

// Truther is implemented by values that define their own truthiness.
type Truther interface {
	Truthy() bool
}

// Truthy reports whether v counts as a non-empty value: nil, false, zero
// numbers, empty strings and empty containers are false, everything else is
// true. Values implementing Truther decide for themselves.
func Truthy(v any) bool {
	if v == nil {
		return false
	}
	if t, ok := v.(Truther); ok {
		return t.Truthy()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return Truthy(rv.Elem().Interface())
	case reflect.Func:
		return !rv.IsNil()
	default:
		return true
	}
}
