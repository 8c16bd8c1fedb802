// Package sqlite provides the public factories for the SQLite driver.
// One database is one file under Config.DataDir; the column, document and
// graph paradigms each get their own connection type while keeping
// implementation details internal.
package sqlite

import (
	"log/slog"

	"github.com/mesh-intelligence/nosqlapi/internal/sqlite"
	"github.com/mesh-intelligence/nosqlapi/pkg/columndb"
	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Option configures a connection.
type Option = sqlite.Option

// WithLogger sets the logger used by the connection and its sessions.
func WithLogger(l *slog.Logger) Option { return sqlite.WithLogger(l) }

// NewColumnConnection returns a disconnected wide-column connection.
//
// Example:
//
//	conn := sqlite.NewColumnConnection(types.Config{DataDir: ".nosqlapi", Database: "app"})
//	sess, err := conn.Connect(ctx)
//	defer conn.Close(ctx)
func NewColumnConnection(cfg types.Config, opts ...Option) columndb.Connection {
	return sqlite.NewColumnConnection(cfg, opts...)
}

// NewDocConnection returns a disconnected document connection. Sessions
// store each collection as a table of JSON bodies.
func NewDocConnection(cfg types.Config, opts ...Option) docdb.Connection {
	return sqlite.NewDocConnection(cfg, opts...)
}

// NewGraphConnection returns a disconnected graph connection.
func NewGraphConnection(cfg types.Config, opts ...Option) graphdb.Connection {
	return sqlite.NewGraphConnection(cfg, opts...)
}
