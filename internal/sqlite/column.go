package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/columndb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// ColumnConnection opens wide-column sessions: tables are SQLite tables.
type ColumnConnection struct {
	backend
}

// NewColumnConnection returns a disconnected connection.
func NewColumnConnection(cfg types.Config, opts ...Option) *ColumnConnection {
	c := &ColumnConnection{}
	c.init(cfg, "column", nil, opts)
	return c
}

// Connect opens the configured database and returns a *ColumnSession.
func (c *ColumnConnection) Connect(ctx context.Context) (types.Session, error) {
	db, name, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	s := &ColumnSession{}
	s.init(&c.backend, c, db, name)
	return s, nil
}

// ColumnSession implements columndb.Session. Conditions are SQL
// expressions.
type ColumnSession struct {
	session
}

var (
	_ columndb.Connection = (*ColumnConnection)(nil)
	_ columndb.Session    = (*ColumnSession)(nil)
)

func (s *ColumnSession) query(ctx context.Context, query string, args ...any) (columndb.Rows, error) {
	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := columndb.Rows{}
	for rows.Next() {
		row := make(types.Row, len(cols))
		ptrs := make([]any, len(cols))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	d := s.Description()
	if d == nil {
		d = types.Description{}
	}
	d["columns"] = cols
	s.SetDescription(d)
	return out, nil
}

// Get returns columns of every row of table, or all columns when none are
// named.
func (s *ColumnSession) Get(ctx context.Context, table string, columns ...string) (*types.Response[columndb.Rows], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	proj := "*"
	if len(columns) > 0 {
		proj = quoteIdents(columns)
	}
	rows, err := s.query(ctx, fmt.Sprintf("SELECT %s FROM %s", proj, quoteIdent(table)))
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "reading "+table)
	}
	s.SetItemCount(len(rows))
	return types.NewResponse(rows), nil
}

func insertSQL(table string, columns []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), quoteIdents(columns), marks)
}

// rowids runs a write statement with RETURNING rowid and collects the
// rowids it touched.
func rowids(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query+" RETURNING rowid", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Insert appends one row and returns its rowid in a one-element slice.
func (s *ColumnSession) Insert(ctx context.Context, table string, columns []string, values []any, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if len(columns) != len(values) {
		return nil, types.Errorf(types.ErrSessionInserting, "%d columns for %d values", len(columns), len(values))
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	ids, err := rowids(ctx, s.db, insertSQL(table, columns), values...)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting into "+table)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// InsertMany appends rows in one transaction and returns their rowids.
func (s *ColumnSession) InsertMany(ctx context.Context, table string, columns []string, rows [][]any, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	q := insertSQL(table, columns)
	ids := []int64{}
	err := s.tx(ctx, func(tx *sql.Tx) error {
		for i, row := range rows {
			if len(row) != len(columns) {
				return fmt.Errorf("row %d has %d values for %d columns", i, len(row), len(columns))
			}
			got, err := rowids(ctx, tx, q, row...)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			ids = append(ids, got...)
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionInserting, err, "inserting into "+table)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

func updateSQL(table string, values map[string]any, condition string) (string, []any) {
	keys := slices.Sorted(maps.Keys(values))
	sets := make([]string, len(keys))
	args := make([]any, len(keys))
	for i, k := range keys {
		sets[i] = quoteIdent(k) + " = ?"
		args[i] = values[k]
	}
	q := fmt.Sprintf("UPDATE %s SET %s", quoteIdent(table), strings.Join(sets, ", "))
	if condition != "" {
		q += " WHERE " + condition
	}
	return q, args
}

// Update assigns values to rows matching condition and returns the rowids
// it changed.
func (s *ColumnSession) Update(ctx context.Context, table string, values map[string]any, condition string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, types.Errorf(types.ErrSessionUpdating, "no values to set")
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	q, args := updateSQL(table, values, condition)
	ids, err := rowids(ctx, s.db, q, args...)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating "+table)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// UpdateMany applies updates in one transaction. A row changed by several
// updates appears once per update.
func (s *ColumnSession) UpdateMany(ctx context.Context, table string, updates []columndb.Update, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	ids := []int64{}
	err := s.tx(ctx, func(tx *sql.Tx) error {
		for i, u := range updates {
			if len(u.Values) == 0 {
				return fmt.Errorf("update %d has no values", i)
			}
			q, args := updateSQL(table, u.Values, u.Condition)
			got, err := rowids(ctx, tx, q, args...)
			if err != nil {
				return fmt.Errorf("update %d: %w", i, err)
			}
			ids = append(ids, got...)
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSessionUpdating, err, "updating "+table)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// Delete removes rows matching condition, or every row when condition is
// empty, and returns the removed rowids.
func (s *ColumnSession) Delete(ctx context.Context, table string, condition string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	q := "DELETE FROM " + quoteIdent(table)
	if condition != "" {
		q += " WHERE " + condition
	}
	ids, err := rowids(ctx, s.db, q)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "deleting from "+table)
	}
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// statementer is implemented by columndb.BaseSelector; SQLite has no
// ALLOW FILTERING clause.
type statementer interface {
	Statement(filtering bool) (string, error)
}

// Find runs a column selector.
func (s *ColumnSession) Find(ctx context.Context, selector types.Selector) (*types.Response[columndb.Rows], error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	st, ok := selector.(statementer)
	if !ok {
		return nil, types.Errorf(types.ErrSessionFinding, "unsupported selector %T", selector)
	}
	q, err := st.Statement(false)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, types.Wrap(types.ErrSessionFinding, err, "running selector")
	}
	s.log.Debug("find", "query", q, "rows", len(rows))
	s.SetItemCount(len(rows))
	return types.NewResponse(rows), nil
}

func columnDef(c *columndb.Column) string {
	def := quoteIdent(c.Name)
	if t := columnAffinity(c.OfType); t != "" {
		def += " " + t
	}
	switch {
	case c.PrimaryKey && c.AutoIncrement:
		def = quoteIdent(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT"
	case c.PrimaryKey:
		def += " PRIMARY KEY"
	}
	return def
}

// CreateTable creates table with its columns and indexes, stores any rows
// the table already holds and returns their rowids.
func (s *ColumnSession) CreateTable(ctx context.Context, table *columndb.Table, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	cols := table.Columns()
	if len(cols) == 0 {
		return nil, types.Errorf(types.ErrSession, "table %s has no columns", table.Name)
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = columnDef(c)
	}
	ine := ""
	if types.MergeParams(params...).Bool("not_exists") {
		ine = "IF NOT EXISTS "
	}

	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	ids := []int64{}
	err := s.tx(ctx, func(tx *sql.Tx) error {
		q := fmt.Sprintf("CREATE TABLE %s%s (%s)", ine, quoteIdent(table.Name), strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
		for _, idx := range table.Index {
			if _, err := tx.ExecContext(ctx, indexSQL(idx)); err != nil {
				return err
			}
		}
		ins := insertSQL(table.Name, table.Header())
		for row := range table.Rows() {
			got, err := rowids(ctx, tx, ins, row...)
			if err != nil {
				return err
			}
			ids = append(ids, got...)
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "creating table "+table.Name)
	}
	s.log.Info("table created", slog.String("table", table.Name), slog.Int("rows", table.Len()))
	s.SetItemCount(len(ids))
	return types.NewResponse[any](ids), nil
}

// DeleteTable drops the table.
func (s *ColumnSession) DeleteTable(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	ie := ""
	if types.MergeParams(params...).Bool("if_exists") {
		ie = "IF EXISTS "
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+ie+quoteIdent(name)); err != nil {
		return nil, types.Wrap(types.ErrSessionDeleting, err, "dropping table "+name)
	}
	return types.NewResponse[any](name), nil
}

// AlterTable adds and drops columns, then renames the table.
func (s *ColumnSession) AlterTable(ctx context.Context, name string, alter columndb.Alter, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()

	table := quoteIdent(name)
	err := s.tx(ctx, func(tx *sql.Tx) error {
		for _, c := range alter.AddColumns {
			if _, err := tx.ExecContext(ctx, "ALTER TABLE "+table+" ADD COLUMN "+columnDef(c)); err != nil {
				return err
			}
		}
		for _, c := range alter.DropColumns {
			if _, err := tx.ExecContext(ctx, "ALTER TABLE "+table+" DROP COLUMN "+quoteIdent(c)); err != nil {
				return err
			}
		}
		if alter.RenameTo != "" {
			if _, err := tx.ExecContext(ctx, "ALTER TABLE "+table+" RENAME TO "+quoteIdent(alter.RenameTo)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "altering table "+name)
	}
	if alter.RenameTo != "" {
		name = alter.RenameTo
	}
	return types.NewResponse[any](name), nil
}

// Compact rebuilds the database file; SQLite cannot compact one table.
func (s *ColumnSession) Compact(ctx context.Context, table string, params ...types.Params) (*types.Result, error) {
	return s.vacuum(ctx)
}

// Truncate removes every row of table.
func (s *ColumnSession) Truncate(ctx context.Context, table string, params ...types.Params) (*types.Result, error) {
	res, err := s.Delete(ctx, table, "", params...)
	if err != nil {
		return nil, types.Wrap(types.ErrSession, err, "truncating "+table)
	}
	return res, nil
}

func indexSQL(idx columndb.Index) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quoteIdent(idx.Name), quoteIdent(idx.Table), quoteIdent(idx.Column))
}

// AddIndex creates a single-column index.
func (s *ColumnSession) AddIndex(ctx context.Context, index columndb.Index, params ...types.Params) (*types.Result, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	ctx, cancel := s.writeCtx(ctx)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, indexSQL(index)); err != nil {
		return nil, types.Wrap(types.ErrSession, err, "creating index "+index.Name)
	}
	return types.NewResponse[any](index.Name), nil
}
