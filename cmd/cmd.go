package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"ocm.software/open-component-model/plughost/cmd/credentials"
	"ocm.software/open-component-model/plughost/cmd/plugins"
	"ocm.software/open-component-model/plughost/cmd/profiles"
	"ocm.software/open-component-model/plughost/cmd/setup"
	"ocm.software/open-component-model/plughost/cmd/setup/hooks"
	"ocm.software/open-component-model/plughost/cmd/version"
	"ocm.software/open-component-model/plughost/internal/configuration"
	"ocm.software/open-component-model/plughost/internal/flags/log"
)

// Execute runs the CLI with the process arguments. It is called by main.main.
func Execute() {
	if err := ExecuteContext(context.Background(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

// ExecuteContext mounts the commands of the installed plugins and executes
// the CLI with args.
func ExecuteContext(ctx context.Context, args []string, opts ...setup.Option) error {
	return ExecuteRoot(ctx, New(opts...), args, opts...)
}

// ExecuteRoot mounts the commands of the installed plugins below root and
// executes it with args.
func ExecuteRoot(ctx context.Context, root *cobra.Command, args []string, opts ...setup.Option) error {
	ctx = setup.Bootstrap(ctx, root, args, opts...)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// New creates the root command with the built-in commands only.
func New(opts ...setup.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plughost [sub-command]",
		Short: "A command line host for npm-distributed plugins",
		Long: `plughost is a command line interface extended by plugins.

Plugins are npm packages that add command groups, contribute profile types and
can replace built-in components such as the credential manager. Manage them
with the plugins command group.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return hooks.PreRunEWithOptions(cmd, args, opts...)
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}

	configuration.RegisterConfigFlag(cmd)
	configuration.RegisterHomeFlag(cmd)
	log.RegisterLoggingFlags(cmd.PersistentFlags())
	cmd.AddCommand(plugins.New())
	cmd.AddCommand(profiles.New())
	cmd.AddCommand(credentials.New())
	cmd.AddCommand(version.New())
	return cmd
}
