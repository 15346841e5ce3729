package plugins

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newUninstall() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <plugin...>",
		Short: "Uninstall plugins",
		Long: `Uninstall plugins by the name they were installed under.

The pre-uninstall hook of a plugin runs first. A plugin that provides the active
credential manager is replaced by the built-in credential manager. Profile types
no other plugin contributes are removed from the profile schema.`,
		Example:           `  plughost plugins uninstall @acme/sample-plugin`,
		Args:              cobra.MinimumNArgs(1),
		RunE:              runUninstall,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
}

func runUninstall(cmd *cobra.Command, args []string) error {
	ops, err := packageOperations(cmd)
	if err != nil {
		return err
	}
	var errs []error
	for _, name := range args {
		if err := ops.Uninstall(cmd.Context(), name); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uninstalled plugin %q\n", name)
	}
	return errors.Join(errs...)
}
