package plugins

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <plugin>",
		Short: "Update a plugin",
		Long: `Update an installed plugin from the package it was installed from.

The plugin is reinstalled from the location recorded at install time unless
--registry names another one. Lifecycle hooks do not run on update.`,
		Example:           `  plughost plugins update @acme/sample-plugin`,
		Args:              cobra.ExactArgs(1),
		RunE:              runUpdate,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	addRegistryFlags(cmd)
	return cmd
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ops, err := packageOperations(cmd)
	if err != nil {
		return err
	}
	if err := login(cmd, ops, defaultRegistry(cmd)); err != nil {
		return err
	}
	updated, err := ops.Update(cmd.Context(), args[0], registry(cmd))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated plugin %q to version %s\n", updated.Name, updated.Entry.Version)
	return nil
}
