package columndb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Connection is the wide-column database-level role.
type Connection interface {
	types.Connection
}

// Rows is the payload of column lookups.
type Rows = []types.Row

// Alter describes a schema change applied by AlterTable.
type Alter struct {
	AddColumns  []*Column // Columns to add; only the attributes are used.
	DropColumns []string  // Column names to drop.
	RenameTo    string    // New table name; empty keeps the name.
}

// Update is one assignment set with the condition selecting its rows.
type Update struct {
	Values    map[string]any
	Condition string
}

// Session is the wide-column data-level role.
type Session interface {
	types.Session

	// Get returns the given columns of every row, or all columns when none
	// are named.
	Get(ctx context.Context, table string, columns ...string) (*types.Response[Rows], error)

	// Insert appends one row. Failures are ErrSessionInserting.
	Insert(ctx context.Context, table string, columns []string, values []any, params ...types.Params) (*types.Result, error)

	// InsertMany appends rows atomically.
	InsertMany(ctx context.Context, table string, columns []string, rows [][]any, params ...types.Params) (*types.Result, error)

	// Update assigns values to rows matching condition. Failures are
	// ErrSessionUpdating.
	Update(ctx context.Context, table string, values map[string]any, condition string, params ...types.Params) (*types.Result, error)

	// UpdateMany applies every update atomically.
	UpdateMany(ctx context.Context, table string, updates []Update, params ...types.Params) (*types.Result, error)

	// Delete removes rows matching condition. Failures are ErrSessionDeleting.
	Delete(ctx context.Context, table string, condition string, params ...types.Params) (*types.Result, error)

	// Find runs a selector. Failures are ErrSessionFinding.
	Find(ctx context.Context, selector types.Selector) (*types.Response[Rows], error)

	CreateTable(ctx context.Context, table *Table, params ...types.Params) (*types.Result, error)
	DeleteTable(ctx context.Context, name string, params ...types.Params) (*types.Result, error)
	AlterTable(ctx context.Context, name string, alter Alter, params ...types.Params) (*types.Result, error)
	Compact(ctx context.Context, table string, params ...types.Params) (*types.Result, error)
	Truncate(ctx context.Context, table string, params ...types.Params) (*types.Result, error)
	AddIndex(ctx context.Context, index Index, params ...types.Params) (*types.Result, error)
}

// Selector is the wide-column selector with projection helpers.
type Selector interface {
	types.Selector

	// All projects every column.
	All()
	// Alias renames a projected field.
	Alias(field, alias string) error
	// Cast converts a projected field to typ.
	Cast(field, typ string) error
	// Count replaces the projection with a row count over field, or * when
	// field is empty.
	Count(field string)
}

// Batch is the wide-column batch role.
type Batch interface {
	types.Batch
}

// BaseSelector is a CQL-flavoured selector.
type BaseSelector struct {
	types.BaseSelector
	Filtering bool // Appends ALLOW FILTERING.
}

// All clears the projection so every column is returned.
func (s *BaseSelector) All() { s.Fields = nil }

// Alias rewrites field as "field AS alias".
func (s *BaseSelector) Alias(field, alias string) error {
	return s.rewrite(field, field+" AS "+alias)
}

// Cast rewrites field as "CAST(field AS typ)".
func (s *BaseSelector) Cast(field, typ string) error {
	return s.rewrite(field, "CAST("+field+" AS "+typ+")")
}

// Count replaces the projection with COUNT(field).
func (s *BaseSelector) Count(field string) {
	if field == "" {
		field = "*"
	}
	s.Fields = []string{"COUNT(" + field + ")"}
}

func (s *BaseSelector) rewrite(field, expr string) error {
	for i, f := range s.Fields {
		if f == field {
			s.Fields[i] = expr
			return nil
		}
	}
	return types.Errorf(types.ErrSelectorAttribute, "field %q is not projected", field)
}

// Build returns a SELECT statement, honouring Filtering.
func (s *BaseSelector) Build() (string, error) {
	return s.Statement(s.Filtering)
}

// Statement renders the SELECT with or without the ALLOW FILTERING clause.
// Drivers whose dialect has no such clause call Statement(false).
func (s *BaseSelector) Statement(filtering bool) (string, error) {
	if err := s.RequireSelector(); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", s.Projection(), s.Target())
	if s.Condition != "" {
		b.WriteString(" WHERE " + s.Condition)
	}
	if s.Order != "" {
		b.WriteString(" ORDER BY " + s.Order)
	}
	if s.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(s.Limit))
	}
	if filtering {
		b.WriteString(" ALLOW FILTERING")
	}
	b.WriteString(";")
	return b.String(), nil
}
