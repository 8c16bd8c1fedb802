package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nosqlapi"
)

const modulePath = "github.com/mesh-intelligence/nosqlapi"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the API level and driver list",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "nosqlctl api level %s\nmodule: %s\ndrivers: %s\n", nosqlapi.APILevel, modulePath, driverList())
			return nil
		},
	}
}
