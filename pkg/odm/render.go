package odm

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
)

// List is an ordered sequence rendered as ['a', 1, True].
type List []any

// Array is an alias of List.
type Array = List

func (l List) Render() string {
	parts := make([]string, len(l))
	for i, v := range l {
		parts[i] = Quote(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Map is a string-keyed mapping rendered as {'a': 1, 'b': 'x'} with keys in
// sorted order.
type Map map[string]any

func (m Map) Render() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = QuoteString(k) + ": " + Quote(m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Render returns the canonical textual form of any value: model wrappers use
// their Render method, Go scalars map onto the equivalent wrapper, and
// containers render element by element. Strings are returned unquoted.
func Render(v any) string {
	switch x := v.(type) {
	case nil:
		return NullValue.Render()
	case Value:
		return x.Render()
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		return Boolean(x).Render()
	case int:
		return strconv.Itoa(x)
	case int64:
		return Int(x).Render()
	case float64:
		return Double(x).Render()
	case float32:
		return Double(x).Render()
	case time.Duration:
		return Duration(x).Render()
	case time.Time:
		return Timestamp{x}.Render()
	case map[string]any:
		return Map(x).Render()
	case []any:
		return List(x).Render()
	case fmt.Stringer:
		return x.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		l := make(List, rv.Len())
		for i := range l {
			l[i] = rv.Index(i).Interface()
		}
		return l.Render()
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(Map, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return m.Render()
		}
	}
	return fmt.Sprint(v)
}

// Quote is Render with string-like values wrapped in single quotes, the form
// used inside containers and graph properties.
func Quote(v any) string {
	switch x := v.(type) {
	case string:
		return QuoteString(x)
	case Text:
		return QuoteString(string(x))
	case Ascii:
		return QuoteString(string(x))
	case Inet:
		return QuoteString(string(x))
	}
	return Render(v)
}

// QuoteString wraps s in single quotes, escaping backslashes and quotes.
func QuoteString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(s) + "'"
}
