package hooks

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/plughost/cmd/setup"
	plugctx "ocm.software/open-component-model/plughost/internal/context"
	"ocm.software/open-component-model/plughost/internal/flags/log"
)

// PreRunE sets up the command with defaults.
func PreRunE(cmd *cobra.Command, args []string) error {
	return PreRunEWithOptions(cmd, args)
}

// PreRunEWithOptions configures logging and creates configuration, plugin
// manager, package operations and credential manager unless an earlier
// bootstrap already did.
func PreRunEWithOptions(cmd *cobra.Command, _ []string, opts ...setup.Option) error {
	// plugin commands leave flags unparsed, the logger from bootstrap stays
	if !cmd.DisableFlagParsing {
		logger, err := log.GetBaseLogger(cmd)
		if err != nil {
			return fmt.Errorf("could not retrieve logger: %w", err)
		}
		slog.SetDefault(logger)
	}

	b := setup.Apply(opts...)
	setup.Config(cmd)
	if err := setup.PluginManager(cmd, b.ManagerOptions...); err != nil {
		return fmt.Errorf("could not setup plugin manager: %w", err)
	}
	if err := setup.Operations(cmd, b.PackageManager); err != nil {
		return fmt.Errorf("could not setup package operations: %w", err)
	}
	setup.Credentials(cmd)

	plugctx.Register(cmd)

	// inherit IO from parent if exists
	if parent := cmd.Parent(); parent != nil {
		cmd.SetOut(parent.OutOrStdout())
		cmd.SetErr(parent.ErrOrStderr())
	}
	return nil
}
