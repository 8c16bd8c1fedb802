// Package sqlite implements the nosqlapi wide-column, document and graph
// paradigms on SQLite. Every database is one file <DataDir>/<name>.db.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// DefaultDatabase is opened by Connect when Config.Database is empty.
const DefaultDatabase = "nosqlapi"

const dbExt = ".db"

// Option configures a connection.
type Option func(*backend)

// WithLogger sets the logger for connection and batch events.
func WithLogger(l *slog.Logger) Option {
	return func(b *backend) { b.log = l }
}

// backend is the connection state shared by the three paradigm connections:
// the database directory, the open handle and the connected flag.
type backend struct {
	types.BaseConnection
	paradigm string
	schema   []string
	log      *slog.Logger

	mu sync.Mutex
	db *sql.DB
}

func (b *backend) init(cfg types.Config, paradigm string, schema []string, opts []Option) {
	b.Config = cfg
	b.paradigm = paradigm
	b.schema = schema
	b.log = slog.Default()
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With("driver", "sqlite", "paradigm", paradigm)
}

func (b *backend) dataDir() string {
	if b.Config.DataDir == "" {
		return "."
	}
	return b.Config.DataDir
}

func (b *backend) path(name string) string {
	return filepath.Join(b.dataDir(), name+dbExt)
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}

// open opens (creating if needed) the session database and applies the
// paradigm schema. It returns the shared handle on later calls.
func (b *backend) open(ctx context.Context) (*sql.DB, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	name := b.Config.Database
	if name == "" {
		name = DefaultDatabase
	}
	if b.db != nil {
		return b.db, name, nil
	}

	if err := b.Config.Validate(); err != nil {
		return nil, "", types.Wrap(types.ErrConnect, err, "invalid configuration")
	}
	if err := validName(name); err != nil {
		return nil, "", types.Wrap(types.ErrConnect, err, "opening database")
	}
	if err := os.MkdirAll(b.dataDir(), 0o755); err != nil {
		return nil, "", types.Wrap(types.ErrConnect, err, "creating data directory")
	}

	db, err := openFile(ctx, b.path(name), b.schema)
	if err != nil {
		return nil, "", types.Wrap(types.ErrConnect, err, "opening "+name)
	}
	b.db = db
	b.SetConnected(true)
	b.log.Debug("connected", "database", name, "dir", b.dataDir())
	return db, name, nil
}

func openFile(ctx context.Context, path string, schema []string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY inside
	// this process.
	db.SetMaxOpenConns(1)

	stmts := append([]string{pragmaForeignKeys}, schema...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
	}
	return db, nil
}

// Close closes the shared handle. Sessions opened by the connection fail
// with ErrConnect afterwards. Closing twice is a no-op.
func (b *backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	b.SetConnected(false)
	if err != nil {
		return types.Wrap(types.ErrClose, err, "closing sqlite database")
	}
	b.log.Debug("closed")
	return nil
}

// CreateDatabase creates the database file with the paradigm schema.
func (b *backend) CreateDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "creating database")
	}
	path := b.path(name)
	if _, err := os.Stat(path); err == nil {
		if !types.MergeParams(params...).Bool("not_exists") {
			return nil, types.Errorf(types.ErrDatabaseCreation, "database %s already exists", name)
		}
		return types.NewResponse[any](name), nil
	}
	db, err := openFile(ctx, path, b.schema)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "creating "+name)
	}
	if err := db.Close(); err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "creating "+name)
	}
	b.log.Info("database created", "database", name)
	return types.NewResponse[any](name), nil
}

// HasDatabase reports whether the database file exists.
func (b *backend) HasDatabase(ctx context.Context, name string) (bool, error) {
	if err := b.RequireConnected(); err != nil {
		return false, err
	}
	if validName(name) != nil {
		return false, nil
	}
	_, err := os.Stat(b.path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	}
	return false, types.Wrap(types.ErrDatabase, err, "checking "+name)
}

// DeleteDatabase removes the database file. The open session database
// cannot be deleted.
func (b *backend) DeleteDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting database")
	}
	current := b.Config.Database
	if current == "" {
		current = DefaultDatabase
	}
	if name == current {
		return nil, types.Errorf(types.ErrDatabaseDeletion, "database %s is in use", name)
	}
	if err := os.Remove(b.path(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) && types.MergeParams(params...).Bool("if_exists") {
			return types.NewResponse[any](name), nil
		}
		return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting "+name)
	}
	b.log.Info("database deleted", "database", name)
	return types.NewResponse[any](name), nil
}

// Databases lists the database files in the data directory, sorted.
func (b *backend) Databases(ctx context.Context) (*types.Result, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(b.dataDir())
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "listing databases")
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != dbExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), dbExt))
	}
	slices.Sort(names)
	return types.NewResponse[any](names), nil
}

// ShowDatabase describes a database: its path, size and objects.
func (b *backend) ShowDatabase(ctx context.Context, name string) (*types.Result, error) {
	if err := b.RequireConnected(); err != nil {
		return nil, err
	}
	if err := validName(name); err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing database")
	}
	path := b.path(name)
	info, err := os.Stat(path)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing "+name)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing "+name)
	}
	defer db.Close()

	tables, err := schemaObjects(ctx, db, "table")
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing "+name)
	}
	indexes, err := schemaObjects(ctx, db, "index")
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing "+name)
	}
	return types.NewResponse[any](map[string]any{
		"name":    name,
		"path":    path,
		"size":    info.Size(),
		"tables":  tables,
		"indexes": indexes,
	}), nil
}

// copyDatabase writes a compacted copy of src to dst with VACUUM INTO.
func (b *backend) copyDatabase(ctx context.Context, src, dst string) error {
	if err := errors.Join(validName(src), validName(dst)); err != nil {
		return err
	}
	if _, err := os.Stat(b.path(dst)); err == nil {
		return fmt.Errorf("database %s already exists", dst)
	}
	db, err := sql.Open("sqlite", "file:"+b.path(src)+"?mode=ro")
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, "VACUUM INTO ?", b.path(dst))
	return err
}

// schemaObjects lists user objects of the given type, sorted by name.
func schemaObjects(ctx context.Context, db *sql.DB, kind string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = ? AND name NOT LIKE 'sqlite_%' ORDER BY name`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// generateUUID returns a UUID v7 string for node and edge ids.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
