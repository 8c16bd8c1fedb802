package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nosqlapi/pkg/config"
)

func newInitCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a config file and check that the driver connects",
		Long: `Init writes config.yaml into the config directory when it is missing,
recording the current driver settings, then opens and closes a connection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := o.configPath()
			if err != nil {
				return err
			}
			path, err := config.WriteDefault(target, o.cfg)
			if err != nil {
				return err
			}
			conn, err := open(o.cfg, o.log)
			if err != nil {
				return err
			}
			if _, err := conn.Connect(cmd.Context()); err != nil {
				return err
			}
			if err := conn.Close(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s (config %s)\n", o.cfg.Driver, path)
			return nil
		},
	}
}
