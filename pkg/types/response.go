package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Header is opaque response metadata supplied by the driver.
type Header map[string]any

// Response is the uniform result envelope (data, code, header, error). It is
// immutable after construction; accessors return the stored values.
type Response[T any] struct {
	data   T
	code   int
	header Header
	err    any // nil, string, or error
}

// ResponseOption customises a Response at construction.
type ResponseOption func(*responseFields)

type responseFields struct {
	code   int
	header Header
	err    any
}

// WithCode sets the numeric status code.
func WithCode(code int) ResponseOption {
	return func(f *responseFields) { f.code = code }
}

// WithHeader sets the opaque header.
func WithHeader(h Header) ResponseOption {
	return func(f *responseFields) { f.header = h }
}

// WithError attaches an error payload. err may be an error or a string.
func WithError(err any) ResponseOption {
	return func(f *responseFields) { f.err = err }
}

// NewResponse builds a Response around data.
func NewResponse[T any](data T, opts ...ResponseOption) *Response[T] {
	var f responseFields
	for _, opt := range opts {
		opt(&f)
	}
	return &Response[T]{data: data, code: f.code, header: f.header, err: f.err}
}

// Data returns the payload.
func (r *Response[T]) Data() T { return r.data }

// Code returns the numeric status code.
func (r *Response[T]) Code() int { return r.code }

// Header returns the opaque header.
func (r *Response[T]) Header() Header { return r.header }

// Err returns the raw error payload (nil, string or error).
func (r *Response[T]) Err() any { return r.err }

// Truthy reports whether the response carries no error and non-empty data.
func (r *Response[T]) Truthy() bool {
	if r == nil {
		return false
	}
	return !Truthy(r.err) && Truthy(r.data)
}

// Throw converts the error payload into an error. An error payload is
// returned as-is; a string payload becomes an ErrNoSQL error with that
// message. Throw returns nil when the response carries no error.
func (r *Response[T]) Throw() error {
	switch e := r.err.(type) {
	case nil:
		return nil
	case error:
		return e
	case string:
		if e == "" {
			return nil
		}
		return Errorf(ErrNoSQL, "%s", e)
	default:
		return Errorf(ErrNoSQL, "%v", e)
	}
}

// Dict exposes the four fields as a mapping.
func (r *Response[T]) Dict() map[string]any {
	return map[string]any{
		"data":   r.data,
		"code":   r.code,
		"header": r.header,
		"error":  r.err,
	}
}

// Len returns the length of the payload when it is a container or string,
// and 0 otherwise.
func (r *Response[T]) Len() int {
	rv := reflect.ValueOf(any(r.data))
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len()
	default:
		return 0
	}
}

// Contains reports whether v is an element of a slice payload, a key of a
// map payload, or a substring of a string payload.
func (r *Response[T]) Contains(v any) bool {
	rv := reflect.ValueOf(any(r.data))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if reflect.DeepEqual(rv.Index(i).Interface(), v) {
				return true
			}
		}
	case reflect.Map:
		kv := reflect.ValueOf(v)
		if !kv.IsValid() || !kv.Type().AssignableTo(rv.Type().Key()) {
			return false
		}
		return rv.MapIndex(kv).IsValid()
	case reflect.String:
		s, ok := v.(string)
		return ok && strings.Contains(rv.String(), s)
	}
	return false
}

// ErrNotIndexable is returned by Index for payloads without positions.
var ErrNotIndexable = errors.New("response data is not indexable")

// Index returns the i-th element of a slice payload. Negative indexes count
// from the end.
func (r *Response[T]) Index(i int) (any, error) {
	rv := reflect.ValueOf(any(r.data))
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
	default:
		return nil, ErrNotIndexable
	}
	n := rv.Len()
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return nil, fmt.Errorf("index %d out of range [0:%d]", i, n)
	}
	return rv.Index(i).Interface(), nil
}

// Any returns a copy of the response with the payload widened to any.
func (r *Response[T]) Any() *Response[any] {
	return &Response[any]{data: r.data, code: r.code, header: r.header, err: r.err}
}

func (r *Response[T]) String() string {
	return fmt.Sprintf("<%s Response object> code=%d data=%v error=%v", Vendor(), r.code, r.data, r.err)
}

// Row is one positional result tuple.
type Row []any
