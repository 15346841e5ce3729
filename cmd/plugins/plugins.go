// Package plugins implements the plugins command group of the CLI.
package plugins

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	plugcmd "ocm.software/open-component-model/plughost/cmd/internal/cmd"
	plugctx "ocm.software/open-component-model/plughost/internal/context"
	"ocm.software/open-component-model/plughost/internal/render"
	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/operations"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugins",
		Aliases: []string{"plugin"},
		Short:   "Install and manage plugins of the plughost CLI",
		Long: `Plugins extend the plughost CLI with new command groups, profile types and
replacements of built-in components such as the credential manager.
Plugins are npm packages installed below the plughost home directory.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.PersistentFlags().String(plugcmd.NPMBinaryFlag, "", "npm executable used to install plugins (defaults to npm on the PATH)")
	cmd.AddCommand(newInstall(), newUninstall(), newUpdate(), newList(), newValidate())
	return cmd
}

func pluginManager(cmd *cobra.Command) (*manager.PluginManager, error) {
	pm := plugctx.FromContext(cmd.Context()).PluginManager()
	if pm == nil {
		return nil, fmt.Errorf("plugin manager is not available")
	}
	return pm, nil
}

func packageOperations(cmd *cobra.Command) (*operations.Operations, error) {
	ops := plugctx.FromContext(cmd.Context()).Operations()
	if ops == nil {
		return nil, fmt.Errorf("package operations are not available")
	}
	return ops, nil
}

// registry returns the registry named by the registry flag.
func registry(cmd *cobra.Command) string {
	value, _ := cmd.Flags().GetString(plugcmd.RegistryFlag)
	return value
}

// defaultRegistry returns the registry flag or, when unset, the configured
// registry. The configured registry only applies to fresh installs: updates
// and manifest files keep the location a plugin was installed from.
func defaultRegistry(cmd *cobra.Command) string {
	if value := registry(cmd); value != "" {
		return value
	}
	if cfg := plugctx.FromContext(cmd.Context()).Configuration(); cfg != nil {
		return cfg.Registry
	}
	return ""
}

// login logs in to the registry when the login flag is set.
func login(cmd *cobra.Command, ops *operations.Operations, registry string) error {
	if ok, _ := cmd.Flags().GetBool(plugcmd.LoginFlag); !ok {
		return nil
	}
	if registry == "" {
		return fmt.Errorf("--%s requires a registry, set --%s", plugcmd.LoginFlag, plugcmd.RegistryFlag)
	}
	return ops.Login(cmd.Context(), registry)
}

func addRegistryFlags(cmd *cobra.Command) {
	cmd.Flags().String(plugcmd.RegistryFlag, "", "registry to install from instead of the configured npm registry")
	cmd.Flags().Bool(plugcmd.LoginFlag, false, "log in to the registry before installing")
}

func issueRows(found []issues.Issue) []table.Row {
	rows := make([]table.Row, 0, len(found))
	for _, issue := range found {
		rows = append(rows, table.Row{issue.Plugin, severityTitle(issue.Severity), issue.Text})
	}
	return rows
}

func writeIssues(w io.Writer, found []issues.Issue) {
	if len(found) == 0 {
		return
	}
	render.WriteTable(w, render.Table{
		Header: table.Row{"Plugin", "Severity", "Issue"},
		Rows:   issueRows(found),
		Merge:  []int{1},
	})
}

func severityTitle(s issues.Severity) string {
	switch s {
	case issues.ConfigError:
		return "config error"
	case issues.CommandError:
		return "command error"
	case issues.OverrideError:
		return "override error"
	case issues.Warning:
		return "warning"
	}
	return string(s)
}
