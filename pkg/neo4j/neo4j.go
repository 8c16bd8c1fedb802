// Package neo4j provides the public factory for the Neo4j graph driver.
package neo4j

import (
	"log/slog"

	"github.com/mesh-intelligence/nosqlapi/internal/neo4j"
	"github.com/mesh-intelligence/nosqlapi/pkg/graphdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Option configures a connection.
type Option = neo4j.Option

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) Option { return neo4j.WithLogger(l) }

// NewConnection returns a disconnected graph connection. Options
// "scheme" and "pool_size" tune the Bolt driver.
func NewConnection(cfg types.Config, opts ...Option) graphdb.Connection {
	return neo4j.NewConnection(cfg, opts...)
}
