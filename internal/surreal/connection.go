package surreal

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

const (
	// DefaultNamespace is used when Config.Options["namespace"] is unset.
	DefaultNamespace = "nosqlapi"
	// DefaultDatabase is used when Config.Database is empty.
	DefaultDatabase = "nosqlapi"

	defaultHost = "localhost"
	defaultPort = 8000
)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) { c.log = l }
}

func withClient(cl client) Option {
	return func(c *Connection) { c.client = cl }
}

// Connection is the document database-level role on SurrealDB. Databases
// live in one namespace.
type Connection struct {
	types.BaseConnection
	log *slog.Logger

	mu     sync.Mutex
	client client
}

var _ docdb.Connection = (*Connection)(nil)

// NewConnection returns a disconnected connection.
func NewConnection(cfg types.Config, opts ...Option) *Connection {
	c := &Connection{log: slog.Default()}
	c.Config = cfg
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("driver", "surreal")
	return c
}

// Endpoint returns the websocket RPC endpoint for cfg.
func Endpoint(cfg types.Config) string {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	scheme := "ws"
	if cfg.Secure() {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}

func (c *Connection) namespace() string {
	if ns, ok := c.Config.Option("namespace", "").(string); ok && ns != "" {
		return ns
	}
	return DefaultNamespace
}

func (c *Connection) database() string {
	if c.Config.Database == "" {
		return DefaultDatabase
	}
	return c.Config.Database
}

// Connect signs in, selects the namespace and database, and returns a
// *Session.
func (c *Connection) Connect(ctx context.Context) (types.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Config.Validate(); err != nil {
		return nil, types.Wrap(types.ErrConnect, err, "invalid configuration")
	}
	if c.client == nil {
		cl, err := dial(ctx, Endpoint(c.Config), c.Config.User, c.Config.Password)
		if err != nil {
			return nil, types.Wrap(types.ErrConnect, err, "connecting to "+Endpoint(c.Config))
		}
		c.client = cl
	}
	if err := c.client.use(ctx, c.namespace(), c.database()); err != nil {
		_ = c.client.close(ctx)
		c.client = nil
		return nil, types.Wrap(types.ErrConnect, err, "use failed")
	}
	c.SetConnected(true)
	c.log.Debug("connected", "namespace", c.namespace(), "database", c.database())
	return newSession(c, c.client, c.database()), nil
}

// Close closes the websocket. Closing twice is a no-op.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.close(ctx)
	c.client = nil
	c.SetConnected(false)
	if err != nil {
		return types.Wrap(types.ErrClose, err, "closing surrealdb connection")
	}
	return nil
}

func (c *Connection) handle() (client, error) {
	if err := c.RequireConnected(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil, types.Errorf(types.ErrConnect, "connection is not connected")
	}
	return c.client, nil
}

func (c *Connection) exec(ctx context.Context, q string, vars map[string]any) ([]any, error) {
	cl, err := c.handle()
	if err != nil {
		return nil, err
	}
	return cl.query(ctx, q, vars)
}

// CreateDatabase defines name in the namespace.
func (c *Connection) CreateDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	q := "DEFINE DATABASE " + ident(name)
	if types.MergeParams(params...).Bool("not_exists") {
		q = "DEFINE DATABASE IF NOT EXISTS " + ident(name)
	}
	if _, err := c.exec(ctx, q, nil); err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "creating "+name)
	}
	c.log.Info("database created", "database", name)
	return types.NewResponse[any](name), nil
}

// Databases lists the databases of the namespace, sorted.
func (c *Connection) Databases(ctx context.Context) (*types.Result, error) {
	res, err := c.exec(ctx, "INFO FOR NS", nil)
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "listing databases")
	}
	if len(res) == 0 {
		return types.NewResponse[any]([]string{}), nil
	}
	return types.NewResponse[any](infoKeys(res[0], "databases")), nil
}

// HasDatabase reports whether name is defined in the namespace.
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

// DeleteDatabase removes name. The session database cannot be removed.
func (c *Connection) DeleteDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if name == c.database() {
		return nil, types.Errorf(types.ErrDatabaseDeletion, "database %s is in use", name)
	}
	q := "REMOVE DATABASE " + ident(name)
	if types.MergeParams(params...).Bool("if_exists") {
		q = "REMOVE DATABASE IF EXISTS " + ident(name)
	}
	if _, err := c.exec(ctx, q, nil); err != nil {
		return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting "+name)
	}
	c.log.Info("database deleted", "database", name)
	return types.NewResponse[any](name), nil
}

// within runs fn with the client switched to database, then switches back.
func (c *Connection) within(ctx context.Context, database string, fn func(client) error) error {
	cl, err := c.handle()
	if err != nil {
		return err
	}
	if err := cl.use(ctx, c.namespace(), database); err != nil {
		return err
	}
	ferr := fn(cl)
	if err := cl.use(ctx, c.namespace(), c.database()); err != nil {
		return fmt.Errorf("restoring database %s: %w", c.database(), err)
	}
	return ferr
}

// ShowDatabase describes name: its tables and users.
func (c *Connection) ShowDatabase(ctx context.Context, name string) (*types.Result, error) {
	ok, err := c.HasDatabase(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.Errorf(types.ErrDatabase, "database %s does not exist", name)
	}
	var info any
	err = c.within(ctx, name, func(cl client) error {
		res, err := cl.query(ctx, "INFO FOR DB", nil)
		if err == nil && len(res) > 0 {
			info = res[0]
		}
		return err
	})
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing "+name)
	}
	return types.NewResponse[any](map[string]any{
		"name":      name,
		"namespace": c.namespace(),
		"tables":    infoKeys(info, "tables"),
		"users":     infoKeys(info, "users"),
	}), nil
}

// CopyDatabase defines dst and copies every table of src into it.
func (c *Connection) CopyDatabase(ctx context.Context, src, dst string, params ...types.Params) (*types.Result, error) {
	if ok, err := c.HasDatabase(ctx, dst); err != nil {
		return nil, err
	} else if ok {
		return nil, types.Errorf(types.ErrDatabaseCreation, "database %s already exists", dst)
	}

	tables := map[string][]map[string]any{}
	err := c.within(ctx, src, func(cl client) error {
		res, err := cl.query(ctx, "INFO FOR DB", nil)
		if err != nil {
			return err
		}
		if len(res) == 0 {
			return nil
		}
		for _, tb := range infoKeys(res[0], "tables") {
			rows, err := cl.query(ctx, "SELECT * FROM type::table($tb)", map[string]any{"tb": tb})
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				tables[tb] = records(rows[0])
			}
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "reading "+src)
	}

	if _, err := c.CreateDatabase(ctx, dst); err != nil {
		return nil, err
	}
	count := 0
	err = c.within(ctx, dst, func(cl client) error {
		for _, tb := range sortedKeys(tables) {
			if _, err := cl.query(ctx, "INSERT INTO type::table($tb) $rows", map[string]any{"tb": tb, "rows": tables[tb]}); err != nil {
				return fmt.Errorf("table %s: %w", tb, err)
			}
			count += len(tables[tb])
		}
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "writing "+dst)
	}
	c.log.Info("database copied", "src", src, "dst", dst, "records", count)
	return types.NewResponse[any](dst), nil
}
