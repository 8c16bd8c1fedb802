package cli

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/mesh-intelligence/nosqlapi/pkg/neo4j"
	"github.com/mesh-intelligence/nosqlapi/pkg/redis"
	"github.com/mesh-intelligence/nosqlapi/pkg/sqlite"
	"github.com/mesh-intelligence/nosqlapi/pkg/surreal"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

type factory func(types.Config, *slog.Logger) types.Connection

var drivers = map[string]factory{
	"sqlite": func(cfg types.Config, l *slog.Logger) types.Connection {
		return sqlite.NewColumnConnection(cfg, sqlite.WithLogger(l))
	},
	"sqlite-doc": func(cfg types.Config, l *slog.Logger) types.Connection {
		return sqlite.NewDocConnection(cfg, sqlite.WithLogger(l))
	},
	"sqlite-graph": func(cfg types.Config, l *slog.Logger) types.Connection {
		return sqlite.NewGraphConnection(cfg, sqlite.WithLogger(l))
	},
	"neo4j": func(cfg types.Config, l *slog.Logger) types.Connection {
		return neo4j.NewConnection(cfg, neo4j.WithLogger(l))
	},
	"redis": func(cfg types.Config, l *slog.Logger) types.Connection {
		return redis.NewConnection(cfg, redis.WithLogger(l))
	},
	"surreal": func(cfg types.Config, l *slog.Logger) types.Connection {
		return surreal.NewConnection(cfg, surreal.WithLogger(l))
	},
}

func driverList() string {
	return strings.Join(slices.Sorted(maps.Keys(drivers)), ", ")
}

func fileBacked(driver string) bool {
	return strings.HasPrefix(driver, "sqlite")
}

// open returns a disconnected connection for cfg.Driver.
func open(cfg types.Config, log *slog.Logger) (types.Connection, error) {
	f, ok := drivers[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown driver %q (valid: %s)", cfg.Driver, driverList())
	}
	return f(cfg, log), nil
}
