package nosqlapi

import (
	"maps"
	"reflect"
	"slices"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// CursorResponse flattens the payload of resp to rows:
//   - rows ([]Row or [][]any) are returned as they are;
//   - a string-keyed map becomes one (key, value) row per entry, keys sorted;
//   - a single Row becomes a one-row result;
//   - any other slice becomes one row holding its elements;
//   - anything else becomes [(value)].
//
// Applying it to a response whose payload is already rows is the identity.
func CursorResponse[T any](resp *types.Response[T]) []types.Row {
	if resp == nil {
		return nil
	}
	return Rows(resp.Data())
}

// Rows applies the CursorResponse rules to a bare value.
func Rows(data any) []types.Row {
	switch d := data.(type) {
	case []types.Row:
		return RowsFromTuples(d)
	case [][]any:
		rows := make([]types.Row, len(d))
		for i, r := range d {
			rows[i] = types.Row(r)
		}
		return rows
	case types.Row:
		return RowsFromTuple(d)
	case map[string]any:
		return RowsFromMap(d)
	case string, []byte, nil:
		return RowsFromScalar(d)
	}

	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return RowsFromSlice(elems)
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return RowsFromMap(m)
		}
	}
	return RowsFromScalar(data)
}

// RowsFromTuples returns rows unchanged.
func RowsFromTuples(rows []types.Row) []types.Row { return rows }

// RowsFromMap returns one (key, value) row per entry in key order.
func RowsFromMap[V any](m map[string]V) []types.Row {
	keys := slices.Sorted(maps.Keys(m))
	rows := make([]types.Row, len(keys))
	for i, k := range keys {
		rows[i] = types.Row{k, m[k]}
	}
	return rows
}

// RowsFromTuple wraps a single row.
func RowsFromTuple(row types.Row) []types.Row { return []types.Row{row} }

// RowsFromSlice returns one row holding the elements of s.
func RowsFromSlice[E any](s []E) []types.Row {
	row := make(types.Row, len(s))
	for i, e := range s {
		row[i] = e
	}
	return []types.Row{row}
}

// RowsFromScalar returns [(v)].
func RowsFromScalar(v any) []types.Row { return []types.Row{{v}} }
