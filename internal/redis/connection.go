// Package redis implements the nosqlapi key-value paradigm on Redis.
//
// A nosqlapi database is a key prefix inside one Redis logical database:
// key k of database d is stored as "d:k". The set of known databases lives
// in the registry set _nosqlapi:databases. Database names cannot contain
// ':' or glob metacharacters, so one prefix never matches another
// database's keys.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

const (
	// DefaultDatabase is used by Connect when Config.Database is empty.
	DefaultDatabase = "nosqlapi"

	defaultHost = "localhost"
	defaultPort = 6379

	registryKey = "_nosqlapi:databases"
	scanCount   = 500
)

// Option configures a Connection.
type Option func(*Connection)

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connection) { c.log = l }
}

// WithClient makes Connect use client instead of dialing Config.Host. The
// caller keeps ownership: Close does not close it.
func WithClient(client *goredis.Client) Option {
	return func(c *Connection) { c.shared = client }
}

// Connection is the key-value database-level role on Redis.
type Connection struct {
	types.BaseConnection
	log *slog.Logger

	mu     sync.Mutex
	client *goredis.Client // nil while disconnected
	owned  bool            // client was created by Connect
	shared *goredis.Client
}

var _ kvdb.Connection = (*Connection)(nil)

// NewConnection returns a disconnected connection.
func NewConnection(cfg types.Config, opts ...Option) *Connection {
	c := &Connection{log: slog.Default()}
	c.Config = cfg
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("driver", "redis")
	return c
}

// Options returns the go-redis client options derived from cfg.
// Config.Options["db"] selects the Redis logical database.
func Options(cfg types.Config) *goredis.Options {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}
	opts := &goredis.Options{
		Addr:         net.JoinHostPort(host, strconv.Itoa(port)),
		Username:     cfg.User,
		Password:     cfg.Password,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	switch db := cfg.Option("db", 0).(type) {
	case int:
		opts.DB = db
	case float64:
		opts.DB = int(db)
	case string:
		opts.DB, _ = strconv.Atoi(db)
	}
	if cfg.Secure() {
		opts.TLSConfig = &tls.Config{ServerName: host, InsecureSkipVerify: !cfg.SSLVerifyCert}
	}
	return opts
}

// reservedChars may not appear in database names.
const reservedChars = ":*?[]\\"

// ValidateName reports whether name can be used as a database name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty database name")
	}
	if strings.ContainsAny(name, reservedChars) {
		return fmt.Errorf("database name %q contains one of %q", name, reservedChars)
	}
	return nil
}

func (c *Connection) database() string {
	if c.Config.Database == "" {
		return DefaultDatabase
	}
	return c.Config.Database
}

// Connect dials Redis, registers the configured database and returns a
// *Session.
func (c *Connection) Connect(ctx context.Context) (types.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.Config.Validate(); err != nil {
		return nil, types.Wrap(types.ErrConnect, err, "invalid configuration")
	}
	name := c.database()
	if err := ValidateName(name); err != nil {
		return nil, types.Wrap(types.ErrConnect, err, "invalid database")
	}
	if c.client == nil {
		c.client, c.owned = c.shared, false
		if c.client == nil {
			c.client, c.owned = goredis.NewClient(Options(c.Config)), true
		}
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.release()
		return nil, types.Wrap(types.ErrConnect, err, "redis ping failed")
	}
	if err := c.client.SAdd(ctx, registryKey, name).Err(); err != nil {
		c.release()
		return nil, types.Wrap(types.ErrConnect, err, "registering "+name)
	}
	c.SetConnected(true)
	c.log.Debug("connected", "addr", c.client.Options().Addr, "database", name)
	return newSession(c, c.client, name), nil
}

// release drops the client, closing it only when Connect created it.
func (c *Connection) release() error {
	var err error
	if c.owned {
		err = c.client.Close()
	}
	c.client, c.owned = nil, false
	c.SetConnected(false)
	return err
}

// Close closes a client created by Connect. Closing twice is a no-op.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	if err := c.release(); err != nil {
		return types.Wrap(types.ErrClose, err, "closing redis client")
	}
	return nil
}

func (c *Connection) handle() (*goredis.Client, error) {
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

// CreateDatabase registers name.
func (c *Connection) CreateDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	if err := ValidateName(name); err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "creating "+name)
	}
	client, err := c.handle()
	if err != nil {
		return nil, err
	}
	added, err := client.SAdd(ctx, registryKey, name).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseCreation, err, "creating "+name)
	}
	if added == 0 && !types.MergeParams(params...).Bool("not_exists") {
		return nil, types.Errorf(types.ErrDatabaseCreation, "database %s already exists", name)
	}
	c.log.Info("database created", "database", name)
	return types.NewResponse[any](name), nil
}

// HasDatabase reports whether name is registered.
func (c *Connection) HasDatabase(ctx context.Context, name string) (bool, error) {
	client, err := c.handle()
	if err != nil {
		return false, err
	}
	ok, err := client.SIsMember(ctx, registryKey, name).Result()
	if err != nil {
		return false, types.Wrap(types.ErrDatabase, err, "checking "+name)
	}
	return ok, nil
}

// DeleteDatabase unregisters name and deletes every key under its prefix.
// The session database cannot be deleted.
func (c *Connection) DeleteDatabase(ctx context.Context, name string, params ...types.Params) (*types.Result, error) {
	client, err := c.handle()
	if err != nil {
		return nil, err
	}
	if name == c.database() {
		return nil, types.Errorf(types.ErrDatabaseDeletion, "database %s is in use", name)
	}
	if err := ValidateName(name); err != nil {
		return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting "+name)
	}
	removed, err := client.SRem(ctx, registryKey, name).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting "+name)
	}
	if removed == 0 {
		if types.MergeParams(params...).Bool("if_exists") {
			return types.NewResponse[any](name), nil
		}
		return nil, types.Errorf(types.ErrDatabaseDeletion, "database %s does not exist", name)
	}
	keys, err := scanKeys(ctx, client, prefix(name)+"*")
	if err != nil {
		return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting "+name)
	}
	for chunk := range slices.Chunk(keys, scanCount) {
		if err := client.Del(ctx, chunk...).Err(); err != nil {
			return nil, types.Wrap(types.ErrDatabaseDeletion, err, "deleting "+name)
		}
	}
	c.log.Info("database deleted", "database", name, "keys", len(keys))
	return types.NewResponse[any](name), nil
}

// Databases lists the registered databases, sorted.
func (c *Connection) Databases(ctx context.Context) (*types.Result, error) {
	client, err := c.handle()
	if err != nil {
		return nil, err
	}
	names, err := client.SMembers(ctx, registryKey).Result()
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "listing databases")
	}
	slices.Sort(names)
	return types.NewResponse[any](names), nil
}

// ShowDatabase returns the name and key count of a registered database.
func (c *Connection) ShowDatabase(ctx context.Context, name string) (*types.Result, error) {
	ok, err := c.HasDatabase(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, types.Errorf(types.ErrDatabase, "database %s does not exist", name)
	}
	client, err := c.handle()
	if err != nil {
		return nil, err
	}
	keys, err := scanKeys(ctx, client, prefix(name)+"*")
	if err != nil {
		return nil, types.Wrap(types.ErrDatabase, err, "showing "+name)
	}
	return types.NewResponse[any](map[string]any{
		"name":   name,
		"keys":   len(keys),
		"prefix": prefix(name),
		"addr":   client.Options().Addr,
	}), nil
}

func prefix(database string) string { return database + ":" }

// scanKeys returns every key matching pattern, sorted.
func scanKeys(ctx context.Context, client goredis.Cmdable, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		page, next, err := client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", pattern, err)
		}
		keys = append(keys, page...)
		if next == 0 {
			break
		}
		cursor = next
	}
	slices.Sort(keys)
	return slices.Compact(keys), nil
}
