package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/nosqlapi"
	"github.com/mesh-intelligence/nosqlapi/pkg/types"
)

type manager = nosqlapi.Manager[types.Session]

func newDatabasesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List the databases of the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withManager(cmd.Context(), func(m *manager) error {
				res, err := m.Databases(cmd.Context())
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), res.Data())
			})
		},
	}
}

func newCreateDatabaseCmd(o *options) *cobra.Command {
	var notExists bool
	cmd := &cobra.Command{
		Use:   "create-database <name>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withManager(cmd.Context(), func(m *manager) error {
				if _, err := m.CreateDatabase(cmd.Context(), args[0], types.Params{"not_exists": notExists}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&notExists, "if-not-exists", false, "succeed when the database already exists")
	return cmd
}

func newDeleteDatabaseCmd(o *options) *cobra.Command {
	var ifExists bool
	cmd := &cobra.Command{
		Use:   "delete-database <name>",
		Short: "Delete a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withManager(cmd.Context(), func(m *manager) error {
				if _, err := m.DeleteDatabase(cmd.Context(), args[0], types.Params{"if_exists": ifExists}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&ifExists, "if-exists", false, "succeed when the database does not exist")
	return cmd
}

func newShowDatabaseCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show-database <name>",
		Short: "Describe a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withManager(cmd.Context(), func(m *manager) error {
				res, err := m.ShowDatabase(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return o.print(cmd.OutOrStdout(), res.Data())
			})
		},
	}
}
