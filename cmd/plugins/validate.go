package plugins

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	plugcmd "ocm.software/open-component-model/plughost/cmd/internal/cmd"
	"ocm.software/open-component-model/plughost/cmd/setup"
	"ocm.software/open-component-model/plughost/internal/flags/enum"
	"ocm.software/open-component-model/plughost/internal/render"
	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/plugin/operations"
)

// Validation is the validation result of one plugin.
type Validation struct {
	Plugin   string         `json:"plugin"`
	Admitted bool           `json:"admitted"`
	Issues   []issues.Issue `json:"issues"`
}

func newValidate() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [plugin...]",
		Short: "Validate installed plugins",
		Long: `Validate installed plugins against the commands of the CLI and of the other
plugins. Without arguments every installed plugin is validated.

Errors keep a plugin from being loaded; warnings are advisory. By default the
command fails when a plugin has errors; --fail-on-warning fails on warnings too.`,
		Example: `  plughost plugins validate
  plughost plugins validate @acme/sample-plugin --fail-on-warning
  plughost plugins validate --fail-on-error=false --output yaml`,
		RunE:              runValidate,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.Flags().Bool(plugcmd.FailOnErrorFlag, true, "fail when a plugin has errors")
	cmd.Flags().Bool(plugcmd.FailOnWarningFlag, false, "fail when a plugin has warnings")
	enum.VarP(cmd.Flags(), plugcmd.OutputFlag, "o", render.Formats, "output format")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	pm, err := pluginManager(cmd)
	if err != nil {
		return err
	}
	hostTree, err := setup.Plugins(cmd, cmd.Root())
	if err != nil {
		return err
	}
	entries, err := pm.Manifest.ReadAll(cmd.Context())
	if err != nil {
		return err
	}
	var names []string
	for _, name := range args {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
			names = append(names, pair.Key)
		}
	}
	for _, name := range names {
		if _, ok := entries.Get(name); !ok {
			return fmt.Errorf("cannot validate plugin %q: %w", name, operations.ErrNotInstalled)
		}
	}
	if len(names) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No plugins have been installed.")
		return nil
	}

	results := validateAll(cmd, pm, hostTree, names)

	format, err := enum.Get(cmd.Flags(), plugcmd.OutputFlag)
	if err != nil {
		return err
	}
	var rows []table.Row
	for _, result := range results {
		if len(result.Issues) == 0 {
			rows = append(rows, table.Row{result.Plugin, "", "The plugin is valid."})
			continue
		}
		rows = append(rows, issueRows(result.Issues)...)
	}
	if err := render.Write(cmd.OutOrStdout(), format, results, render.Table{
		Header: table.Row{"Plugin", "Severity", "Issue"},
		Rows:   rows,
		Merge:  []int{1},
	}); err != nil {
		return err
	}

	failOnError, _ := cmd.Flags().GetBool(plugcmd.FailOnErrorFlag)
	failOnWarning, _ := cmd.Flags().GetBool(plugcmd.FailOnWarningFlag)
	var failed []string
	for _, result := range results {
		errorFound := pm.Tracker.HasSeverity(result.Plugin, issues.ConfigError, issues.CommandError)
		warningFound := pm.Tracker.HasSeverity(result.Plugin, issues.Warning)
		if (failOnError && errorFound) || (failOnWarning && warningFound) {
			failed = append(failed, result.Plugin)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("validation failed for plugins: %s", strings.Join(failed, ", "))
	}
	return nil
}

// validateAll validates the plugins concurrently. Validation only reads the
// host tree and records issues per plugin.
func validateAll(cmd *cobra.Command, pm *manager.PluginManager, hostTree *types.CommandDefinition, names []string) []Validation {
	results := make([]Validation, len(names))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(runtime.NumCPU())
	for i, name := range names {
		g.Go(func() error {
			admitted := pm.Validate(ctx, hostTree, name)
			results[i] = Validation{Plugin: name, Admitted: admitted, Issues: pm.Tracker.List(name)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
