package plugins

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	plugcmd "ocm.software/open-component-model/plughost/cmd/internal/cmd"
	"ocm.software/open-component-model/plughost/cmd/setup"
	"ocm.software/open-component-model/plughost/internal/flags/enum"
	"ocm.software/open-component-model/plughost/internal/render"
	"ocm.software/open-component-model/plughost/plugin/manager/issues"
)

// Installed is a plugin as listed by the list command.
type Installed struct {
	Name         string         `json:"name"`
	Package      string         `json:"package"`
	Version      string         `json:"version"`
	Location     string         `json:"location"`
	Loaded       bool           `json:"loaded"`
	CommandGroup string         `json:"commandGroup,omitempty"`
	Issues       []issues.Issue `json:"issues,omitempty"`
}

func newList() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed plugins",
		Long: `List the installed plugins in install order together with the location they were
installed from and whether their commands could be loaded.`,
		Example: `  plughost plugins list
  plughost plugins list --short
  plughost plugins list --output json`,
		Args:              cobra.NoArgs,
		RunE:              runList,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.Flags().Bool(plugcmd.ShortFlag, false, "print plugin names only")
	enum.VarP(cmd.Flags(), plugcmd.OutputFlag, "o", render.Formats, "output format")
	return cmd
}

func runList(cmd *cobra.Command, _ []string) error {
	pm, err := pluginManager(cmd)
	if err != nil {
		return err
	}
	if _, err := setup.Plugins(cmd, cmd.Root()); err != nil {
		return err
	}
	entries, err := pm.Manifest.ReadAll(cmd.Context())
	if err != nil {
		return err
	}

	admitted := map[string]bool{}
	for _, name := range pm.Admitted() {
		admitted[name] = true
	}
	list := make([]Installed, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		item := Installed{
			Name:     pair.Key,
			Package:  pair.Value.Package,
			Version:  pair.Value.Version,
			Location: pair.Value.Location,
			Loaded:   admitted[pair.Key],
			Issues:   pm.Tracker.List(pair.Key),
		}
		if group, ok := pm.Group(pair.Key); ok {
			item.CommandGroup = group.Name
		}
		list = append(list, item)
	}

	out := cmd.OutOrStdout()
	if short, _ := cmd.Flags().GetBool(plugcmd.ShortFlag); short {
		for _, item := range list {
			fmt.Fprintln(out, item.Name)
		}
		return nil
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No plugins have been installed.")
	}

	format, err := enum.Get(cmd.Flags(), plugcmd.OutputFlag)
	if err != nil {
		return err
	}
	rows := make([]table.Row, 0, len(list))
	for _, item := range list {
		status := "loaded"
		if !item.Loaded {
			status = fmt.Sprintf("not loaded (%d issues)", len(item.Issues))
		}
		rows = append(rows, table.Row{item.Name, item.Version, item.Location, item.CommandGroup, status})
	}
	return render.Write(out, format, list, render.Table{
		Header: table.Row{"Plugin", "Version", "Location", "Command Group", "Status"},
		Rows:   rows,
	})
}
