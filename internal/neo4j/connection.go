package neo4j

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

const (
	// DefaultDatabase is used when Config.Database is empty.
	DefaultDatabase = "neo4j"

	defaultHost   = "localhost"
	defaultPort   = 7687
	defaultScheme = "neo4j"
)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) { c.log = l }
}

func withRunner(r runner) Option {
	return func(c *Connection) { c.run = r }
}

// Connection is the graph database-level role on Neo4j.
type Connection struct {
	types.BaseConnection
	log *slog.Logger

	mu  sync.Mutex
	run runner
}

var _ graphdb.Connection = (*Connection)(nil)

// NewConnection returns a disconnected connection.
func NewConnection(cfg types.Config, opts ...Option) *Connection {
	c := &Connection{log: slog.Default()}
	c.Config = cfg
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("driver", "neo4j")
	return c
}

// URI returns the Bolt URI for cfg. Options["scheme"] overrides the
// scheme; a secure config appends "+s".
func URI(cfg types.Config) string {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	scheme, _ := cfg.Option("scheme", defaultScheme).(string)
	if scheme == "" {
		scheme = defaultScheme
	}
	if cfg.Secure() {
		scheme += "+s"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

func (c *Connection) database() string {
	if c.Config.Database == "" {
		return DefaultDatabase
	}
	return c.Config.Database
}

func poolSize(cfg types.Config) int {
	switch v := cfg.Option("pool_size", 0).(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Connect opens the Bolt driver, verifies connectivity and returns a
// *Session on the configured database.
func (c *Connection) Connect(ctx context.Context) (types.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Config.Validate(); err != nil {
		return nil, types.Wrap(types.ErrConnect, err, "invalid configuration")
	}
	if c.run == nil {
		r, err := dial(ctx, URI(c.Config), c.Config.User, c.Config.Password, poolSize(c.Config), c.Config.ReadTimeout)
		if err != nil {
			return nil, types.Wrap(types.ErrConnect, err, "connecting to "+URI(c.Config))
		}
		c.run = r
	} else if err := c.run.verify(ctx); err != nil {
		return nil, types.Wrap(types.ErrConnect, err, "verifying connectivity")
	}
	c.SetConnected(true)
	c.log.Debug("connected", "uri", URI(c.Config), "database", c.database())
	return newSession(c, c.run, c.database()), nil
}

// Close closes the driver. Closing twice is a no-op.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil
	}
	err := c.run.close(ctx)
	c.run = nil
	c.SetConnected(false)
	if err != nil {
		return types.Wrap(types.ErrClose, err, "closing neo4j driver")
	}
	return nil
}

func (c *Connection) handle() (runner, error) {
	if err := c.RequireConnected(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil, types.Errorf(types.ErrConnect, "connection is not connected")
	}
	return c.run, nil
}

func (c *Connection) system(ctx context.Context, cypher string, write bool) ([]*driver.Record, error) {
	r, err := c.handle()
	if err != nil {
		return nil, err
	}
	st := statement{cypher: cypher}
	if !write {
		return r.read(ctx, systemDatabase, st)
	}
	res, err := r.write(ctx, systemDatabase, st)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// CreateDatabase creates name. Creating databases needs an edition that
// supports it.
func (c *Connection) CreateDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	q := "CREATE DATABASE " + quote(name)
	if types.MergeParams(params...).Bool("not_exists") {
		q += " IF NOT EXISTS"
	}
	if _, err := c.system(ctx, q, true); err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "creating "+name)
	}
	c.log.Info("database created", "database", name)
	return types.NewResponse[any](name), nil
}

// Databases lists the database names, sorted.
func (c *Connection) Databases(ctx context.Context) (*types.Result, error) {
	recs, err := c.system(ctx, "SHOW DATABASES YIELD name RETURN DISTINCT name ORDER BY name", false)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "listing databases")
	}
	return types.NewResponse[any](column(recs, "name")), nil
}

// HasDatabase reports whether name exists.
func (c *Connection) HasDatabase(ctx context.Context, name string) (bool, error) {
	res, err := c.Databases(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range res.Data().([]string) {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// DeleteDatabase drops name. The session database cannot be dropped.
func (c *Connection) DeleteDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if name == c.database() {
		return nil, types.Errorf(types.ErrDatabaseDeletion, "database %s is in use", name)
	}
	q := "DROP DATABASE " + quote(name)
	if types.MergeParams(params...).Bool("if_exists") {
		q += " IF EXISTS"
	}
	if _, err := c.system(ctx, q, true); err != nil {
		return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting "+name)
	}
	c.log.Info("database deleted", "database", name)
	return types.NewResponse[any](name), nil
}

// ShowDatabase returns a *graphdb.Database describing name on the first
// server that hosts it.
func (c *Connection) ShowDatabase(ctx context.Context, name string) (*types.Result, error) {
	recs, err := c.system(ctx, "SHOW DATABASE "+quote(name)+" YIELD name, address, role, currentStatus, default", false)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing "+name)
	}
	if len(recs) == 0 {
		return nil, types.Errorf(types.ErrDatabase, "database %s does not exist", name)
	}
	db := graphdb.NewDatabase(name)
	db.Exists = true
	r := recs[0]
	if v, ok := r.Get("address"); ok {
		db.Address, _ = v.(string)
	}
	if v, ok := r.Get("role"); ok {
		db.Role, _ = v.(string)
	}
	if v, ok := r.Get("currentStatus"); ok {
		db.Status, _ = v.(string)
	}
	if v, ok := r.Get("default"); ok {
		db.Default, _ = v.(bool)
	}
	return types.NewResponse[any](db), nil
}
