package types

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"
)

// Result is the response type returned by contract operations whose payload
// shape depends on the driver.
type Result = Response[any]

// Params carries driver-specific keyword arguments for an operation.
type Params map[string]any

// MergeParams folds ps left to right into a single Params; later keys win.
func MergeParams(ps ...Params) Params {
	out := make(Params)
	for _, p := range ps {
		maps.Copy(out, p)
	}
	return out
}

// Bool returns the boolean stored under key, false when absent or not a
// bool.
func (p Params) Bool(key string) bool {
	v, _ := p[key].(bool)
	return v
}

// Duration returns the time.Duration stored under key, or def. Strings
// are parsed with time.ParseDuration.
func (p Params) Duration(key string, def time.Duration) time.Duration {
	switch v := p[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Connector is the single capability a value needs to be used as a
// connection by Manager and GlobalSession.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// Connection is the database-level role. Callers create it disconnected,
// obtain a Session through Connect, and release it with Close.
// Every operation except Connect and Close fails with ErrConnect while the
// connection is not connected.
type Connection interface {
	Connector

	// Close releases transport resources. Failures are ErrClose.
	Close(ctx context.Context) error

	// Connected reports whether Connect has succeeded and Close has not
	// been called since.
	Connected() bool

	// CreateDatabase creates name. Failures are ErrDatabaseCreation.
	CreateDatabase(ctx context.Context, name string, params ...Params) (*Result, error)

	// HasDatabase reports whether name exists on the server.
	HasDatabase(ctx context.Context, name string) (bool, error)

	// DeleteDatabase deletes name. Failures are ErrDatabaseDeletion.
	DeleteDatabase(ctx context.Context, name string, params ...Params) (*Result, error)

	// Databases lists the server databases.
	Databases(ctx context.Context) (*Result, error)

	// ShowDatabase describes name.
	ShowDatabase(ctx context.Context, name string) (*Result, error)
}

// BaseConnection carries the state every driver connection shares: the
// configuration and the connected flag. Drivers embed it and call
// SetConnected from Connect and Close.
type BaseConnection struct {
	Config Config

	mu        sync.RWMutex
	connected bool
}

// Connected reports the connected flag.
func (c *BaseConnection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetConnected updates the connected flag.
func (c *BaseConnection) SetConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
}

// Truthy mirrors Connected.
func (c *BaseConnection) Truthy() bool { return c.Connected() }

// RequireConnected returns ErrConnect when the connection is not connected.
func (c *BaseConnection) RequireConnected() error {
	if !c.Connected() {
		return Errorf(ErrConnect, "connection is not connected")
	}
	return nil
}

func (c *BaseConnection) String() string {
	return fmt.Sprintf("<%s Connection object> host=%q database=%q connected=%t",
		Vendor(), c.Config.Host, c.Config.Database, c.Connected())
}
