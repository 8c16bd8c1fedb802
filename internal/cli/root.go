// Package cli implements the nosqlctl command-line interface: it opens any
// shipped driver through a nosqlapi.Manager and runs database-level and
// lookup operations.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nosqlapi"
	"github.com/mesh-intelligence/nosqlapi/internal/paths"
	"github.com/mesh-intelligence/nosqlapi/pkg/config"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// options holds the global flag values of one command tree.
type options struct {
	config   string
	driver   string
	database string
	dataDir  string
	json     bool
	verbose  bool

	cfg types.Config
	log *slog.Logger
}

// NewRootCmd creates the "nosqlctl" command with its global flags and
// subcommands.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "nosqlctl",
		Short:         "Inspect NoSQL databases through the nosqlapi drivers",
		Version:       nosqlapi.APILevel,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&o.config, "config", "", "config file or directory (default: $NOSQLAPI_CONFIG_DIR or the platform config dir)")
	root.PersistentFlags().StringVar(&o.driver, "driver", "", "driver: "+driverList())
	root.PersistentFlags().StringVar(&o.database, "database", "", "database to open")
	root.PersistentFlags().StringVar(&o.dataDir, "data-dir", "", "data directory for file-backed drivers")
	root.PersistentFlags().BoolVar(&o.json, "json", false, "output as JSON")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "debug logging on stderr")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(o),
		newDatabasesCmd(o),
		newCreateDatabaseCmd(o),
		newDeleteDatabaseCmd(o),
		newShowDatabaseCmd(o),
		newGetCmd(o),
		newFindCmd(o),
	)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode maps connection failures to exitSysError and everything else
// to exitUserError.
func exitCode(err error) int {
	if errors.Is(err, types.ErrConnect) {
		return exitSysError
	}
	return exitUserError
}

func (o *options) configPath() (string, error) {
	if o.config != "" {
		return o.config, nil
	}
	return paths.ResolveConfigDir("")
}

// load reads the configuration, applies flag overrides and sets up logging.
func (o *options) load(stderr io.Writer) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	o.log = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	path, err := o.configPath()
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if o.database != "" {
		cfg.Database = o.database
	}
	if fileBacked(cfg.Driver) {
		if cfg.DataDir, err = paths.ResolveDataDir(o.dataDir, cfg.DataDir); err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
	}
	o.cfg = cfg
	o.log.Debug("config loaded", "path", path, "driver", cfg.Driver, "database", cfg.Database)
	return nil
}

// withManager opens the configured driver, runs fn and closes both the
// session and the connection.
func (o *options) withManager(ctx context.Context, fn func(*nosqlapi.Manager[types.Session]) error) error {
	conn, err := open(o.cfg, o.log)
	if err != nil {
		return err
	}
	return nosqlapi.WithManager(ctx, conn, fn, nosqlapi.WithLogger(o.log))
}
