// Package surreal provides the public factory for the SurrealDB document
// driver.
package surreal

import (
	"log/slog"

	"github.com/mesh-intelligence/nosqlapi/internal/surreal"
	"github.com/mesh-intelligence/nosqlapi/pkg/docdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Option configures a connection.
type Option = surreal.Option

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) Option { return surreal.WithLogger(l) }

// NewConnection returns a disconnected document connection. The namespace
// comes from Config.Options["namespace"].
func NewConnection(cfg types.Config, opts ...Option) docdb.Connection {
	return surreal.NewConnection(cfg, opts...)
}
