package columndb

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
	"slices"

	"github.com/mesh-intelligence/nosqlapi/pkg/odm"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Column errors.
var (
	ErrMaxLen        = errors.New("column is full")
	ErrColumnType    = errors.New("value does not match column type")
	ErrColumnUnknown = errors.New("column not found")
	ErrRowWidth      = errors.New("row width does not match table columns")
)

// Column is a named, typed, ordered sequence of values.
type Column struct {
	Name          string       // Column name.
	OfType        reflect.Type // Declared type; nil accepts any value.
	MaxLen        int          // Maximum number of values; 0 is unlimited.
	Default       func() any   // Supplies a value when Append receives nil.
	AutoIncrement bool         // Numeric columns number their values 1, 2, 3, ...
	PrimaryKey    bool         // Marks the table's primary key.
	data          []any
}

// ColumnOption configures a Column at construction.
type ColumnOption func(*Column)

// OfType declares the column type.
func OfType(t reflect.Type) ColumnOption { return func(c *Column) { c.OfType = t } }

// MaxLen bounds the number of values.
func MaxLen(n int) ColumnOption { return func(c *Column) { c.MaxLen = n } }

// Default sets the value factory used when Append receives nil.
func Default(f func() any) ColumnOption { return func(c *Column) { c.Default = f } }

// AutoIncrement turns on automatic numbering.
func AutoIncrement() ColumnOption { return func(c *Column) { c.AutoIncrement = true } }

// PrimaryKey marks the column as the table's primary key.
func PrimaryKey() ColumnOption { return func(c *Column) { c.PrimaryKey = true } }

// NewColumn returns a column named name. Options apply first, then data is
// appended value by value with the usual checks.
func NewColumn(name string, data []any, opts ...ColumnOption) (*Column, error) {
	c := &Column{Name: name}
	for _, opt := range opts {
		opt(c)
	}
	for _, v := range data {
		if err := c.Append(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustColumn is NewColumn that panics on error.
func MustColumn(name string, data []any, opts ...ColumnOption) *Column {
	c, err := NewColumn(name, data, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Append adds v at the end. It returns ErrMaxLen when the column is full.
// An auto-increment numeric column ignores v and stores the previous value
// plus one; otherwise a nil v is replaced by Default() when set. The stored
// value must be assignable to OfType, or ErrColumnType is returned.
func (c *Column) Append(v any) error {
	if c.MaxLen > 0 && len(c.data) >= c.MaxLen {
		return fmt.Errorf("%w: %s holds %d values", ErrMaxLen, c.Name, c.MaxLen)
	}

	switch {
	case c.AutoIncrement && c.numeric():
		v = c.next()
	case v == nil && c.Default != nil:
		v = c.Default()
	}

	if c.OfType != nil && v != nil && !reflect.TypeOf(v).AssignableTo(c.OfType) {
		return fmt.Errorf("%w: %s expects %s, got %T", ErrColumnType, c.Name, c.OfType, v)
	}
	c.data = append(c.data, v)
	return nil
}

func (c *Column) numeric() bool {
	if c.OfType == nil {
		return true
	}
	switch c.OfType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (c *Column) next() any {
	var last int64
	if n := len(c.data); n > 0 {
		rv := reflect.ValueOf(c.data[n-1])
		switch {
		case rv.CanInt():
			last = rv.Int()
		case rv.CanUint():
			last = int64(rv.Uint())
		case rv.CanFloat():
			last = int64(rv.Float())
		}
	}
	if c.OfType == nil {
		return int(last + 1)
	}
	return reflect.ValueOf(last + 1).Convert(c.OfType).Interface()
}

// Len returns the number of values.
func (c *Column) Len() int { return len(c.data) }

// At returns the value at position i.
func (c *Column) At(i int) (any, error) {
	if i < 0 || i >= len(c.data) {
		return nil, fmt.Errorf("%w: %d", odm.ErrIndexRange, i)
	}
	return c.data[i], nil
}

// Values returns a copy of the values.
func (c *Column) Values() []any { return slices.Clone(c.data) }

// Table is a named ordered sequence of columns producing row tuples.
type Table struct {
	Name    string         // Table name.
	Options map[string]any // Free-form engine options.
	Index   []Index        // Indexes declared on the table.
	columns []*Column
}

// NewTable returns a table with the given columns in order.
func NewTable(name string, columns ...*Column) *Table {
	return &Table{Name: name, Options: map[string]any{}, columns: slices.Clone(columns)}
}

// Columns returns the columns in order.
func (t *Table) Columns() []*Column { return slices.Clone(t.columns) }

// Column returns the column called name.
func (t *Table) Column(name string) (*Column, bool) {
	i := slices.IndexFunc(t.columns, func(c *Column) bool { return c.Name == name })
	if i < 0 {
		return nil, false
	}
	return t.columns[i], true
}

// AddColumn appends columns.
func (t *Table) AddColumn(columns ...*Column) {
	t.columns = append(t.columns, columns...)
}

// DeleteColumn removes the column called name.
func (t *Table) DeleteColumn(name string) error {
	i := slices.IndexFunc(t.columns, func(c *Column) bool { return c.Name == name })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrColumnUnknown, name)
	}
	t.columns = slices.Delete(t.columns, i, i+1)
	return nil
}

// Header returns the column names in order.
func (t *Table) Header() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the name of the column flagged primary, or "".
func (t *Table) PrimaryKey() string {
	for _, c := range t.columns {
		if c.PrimaryKey {
			return c.Name
		}
	}
	return ""
}

// Len returns the number of complete rows: the length of the shortest column.
func (t *Table) Len() int {
	if len(t.columns) == 0 {
		return 0
	}
	n := t.columns[0].Len()
	for _, c := range t.columns[1:] {
		n = min(n, c.Len())
	}
	return n
}

// Rows iterates over the row tuples obtained by zipping the columns.
func (t *Table) Rows() iter.Seq[types.Row] {
	return func(yield func(types.Row) bool) {
		for i := range t.Len() {
			row := make(types.Row, len(t.columns))
			for j, c := range t.columns {
				row[j] = c.data[i]
			}
			if !yield(row) {
				return
			}
		}
	}
}

// AppendRow appends one value to every column. Nothing is appended when any
// column rejects its value.
func (t *Table) AppendRow(values ...any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: got %d values for %d columns", ErrRowWidth, len(values), len(t.columns))
	}
	for i, c := range t.columns {
		if err := c.Append(values[i]); err != nil {
			for _, done := range t.columns[:i] {
				done.data = done.data[:len(done.data)-1]
			}
			return err
		}
	}
	return nil
}

// Index is a named index on one column of a table.
type Index struct {
	Name   string
	Table  string
	Column string
}

// Keyspace is a named container of tables.
type Keyspace = odm.Keyspace[*Table]

// NewKeyspace returns a keyspace holding tables in order.
func NewKeyspace(name string, tables ...*Table) *Keyspace {
	return odm.NewKeyspace(name, tables...)
}
