// Package redis provides the public factory for the Redis key-value driver.
// A database is a key prefix recorded in a registry set.
package redis

import (
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mesh-intelligence/nosqlapi/internal/redis"
	"github.com/mesh-intelligence/nosqlapi/pkg/kvdb"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Option configures a connection.
type Option = redis.Option

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) Option { return redis.WithLogger(l) }

// WithClient makes the connection use an existing client instead of
// building one from the Config.
func WithClient(c *goredis.Client) Option { return redis.WithClient(c) }

// NewConnection returns a disconnected key-value connection.
func NewConnection(cfg types.Config, opts ...Option) kvdb.Connection {
	return redis.NewConnection(cfg, opts...)
}
