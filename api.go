package nosqlapi

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Canonical lists the contract method names an alias may target.
var Canonical = []string{
	"close", "connect", "create_database", "has_database", "delete_database",
	"databases", "show_database", "copy_database", "get", "insert",
	"insert_many", "update", "update_many", "delete", "find", "grant",
	"revoke", "new_user", "set_user", "delete_user", "add_index", "call",
	"build", "execute", "link", "detach", "copy", "compact", "truncate",
	"create_table", "delete_table", "alter_table",
}

// Alias registry errors.
var (
	ErrNotCanonical  = errors.New("not a canonical contract method")
	ErrNoSuchMethod  = errors.New("method not found")
	ErrArguments     = errors.New("arguments do not match method")
	ErrInvalidTarget = errors.New("alias target must be a non-nil value")
)

// GoName converts a canonical name such as "create_database" to the Go
// method name "CreateDatabase".
func GoName(canonical string) string {
	var b strings.Builder
	for part := range strings.SplitSeq(canonical, "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	return b.String()
}

var (
	registryMu sync.RWMutex
	registry   = map[reflect.Type]map[string]string{}
)

// RegisterAPI records aliases for every value of type T. aliases maps an
// existing Go method name of T to the canonical name it also answers to.
// An unknown canonical name fails and nothing is recorded. Aliases whose
// method T does not define are ignored.
func RegisterAPI[T any](aliases map[string]string) error {
	t := reflect.TypeFor[T]()
	table, err := aliasTable(t, aliases)
	if err != nil {
		return err
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if prev, ok := registry[t]; ok {
		maps.Copy(prev, table)
		return nil
	}
	registry[t] = table
	return nil
}

func aliasTable(t reflect.Type, aliases map[string]string) (map[string]string, error) {
	table := make(map[string]string, len(aliases))
	for method, canonical := range aliases {
		if !slices.Contains(Canonical, canonical) {
			return nil, fmt.Errorf("%w: %q", ErrNotCanonical, canonical)
		}
		if _, ok := t.MethodByName(method); !ok {
			continue
		}
		table[canonical] = method
	}
	return table, nil
}

// Methods dispatches canonical method names on a target value.
type Methods struct {
	target  reflect.Value
	aliases map[string]string // canonical name to Go method name
}

// API binds target with extra aliases on top of those registered for its
// type. See RegisterAPI for the alias rules.
func API(target any, aliases map[string]string) (*Methods, error) {
	if target == nil {
		return nil, ErrInvalidTarget
	}
	m := Bind(target)
	table, err := aliasTable(m.target.Type(), aliases)
	if err != nil {
		return nil, err
	}
	maps.Copy(m.aliases, table)
	return m, nil
}

// Bind returns the dispatcher for target with the aliases registered for
// its type.
func Bind(target any) *Methods {
	v := reflect.ValueOf(target)
	m := &Methods{target: v, aliases: map[string]string{}}
	registryMu.RLock()
	defer registryMu.RUnlock()
	if v.IsValid() {
		maps.Copy(m.aliases, registry[v.Type()])
	}
	return m
}

// Method resolves name to a bound method. name may be a canonical name,
// resolved through the alias table first and then by its Go spelling, or a
// Go method name.
func (m *Methods) Method(name string) (reflect.Value, bool) {
	if !m.target.IsValid() {
		return reflect.Value{}, false
	}
	candidates := []string{name}
	if alias, ok := m.aliases[name]; ok {
		candidates = []string{alias}
	} else if slices.Contains(Canonical, name) {
		candidates = []string{GoName(name)}
	}
	for _, c := range candidates {
		if fn := m.target.MethodByName(c); fn.IsValid() {
			return fn, true
		}
	}
	return reflect.Value{}, false
}

// Has reports whether name resolves to a method.
func (m *Methods) Has(name string) bool {
	_, ok := m.Method(name)
	return ok
}

// Call invokes name with args. Results are returned in order with a
// trailing error result split off.
func (m *Methods) Call(name string, args ...any) ([]any, error) {
	fn, ok := m.Method(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoSuchMethod, name, m.target.Type())
	}
	return invoke(fn, name, args)
}

// CallContext is Call with ctx passed first when the method takes a
// context.Context as its first parameter.
func (m *Methods) CallContext(ctx context.Context, name string, args ...any) ([]any, error) {
	fn, ok := m.Method(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoSuchMethod, name, m.target.Type())
	}
	if ft := fn.Type(); ft.NumIn() > 0 && ft.In(0) == contextType {
		args = append([]any{ctx}, args...)
	}
	return invoke(fn, name, args)
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

func invoke(fn reflect.Value, name string, args []any) ([]any, error) {
	ft := fn.Type()
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!ft.IsVariadic() && len(args) > fixed) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrArguments, name, ft.NumIn(), len(args))
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if i < fixed {
			pt = ft.In(i)
		} else {
			pt = ft.In(fixed).Elem()
		}
		v, err := argValue(a, pt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v", ErrArguments, name, i, err)
		}
		in[i] = v
	}

	out := fn.Call(in)
	var err error
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if e := out[n-1].Interface(); e != nil {
			err = e.(error)
		}
		out = out[:n-1]
	}
	results := make([]any, len(out))
	for i, o := range out {
		results[i] = o.Interface()
	}
	return results, err
}

func argValue(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch pt.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %s", pt)
	}
	v := reflect.ValueOf(a)
	switch {
	case v.Type().AssignableTo(pt):
		return v, nil
	case v.Type().ConvertibleTo(pt) && v.Kind() != reflect.String && pt.Kind() != reflect.String:
		return v.Convert(pt), nil
	case v.Kind() == pt.Kind() && v.Kind() == reflect.String:
		return v.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), pt)
}
