// Package profiles implements the profiles command group of the CLI.
package profiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	plugcmd "ocm.software/open-component-model/plughost/cmd/internal/cmd"
	plugctx "ocm.software/open-component-model/plughost/internal/context"
	"ocm.software/open-component-model/plughost/internal/flags/enum"
	"ocm.software/open-component-model/plughost/internal/render"
	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/profiles"
	"ocm.software/open-component-model/plughost/profile/schema"
)

// HostOwnerName is listed as owner of the host's profile types.
const HostOwnerName = "plughost"

// ProfileType is a profile type as listed by the list command.
type ProfileType struct {
	Type    string `json:"type"`
	Owner   string `json:"owner"`
	Title   string `json:"title,omitempty"`
	Version string `json:"version,omitempty"`
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "Inspect profile types and check profiles against them",
		Long: `Profile types are declared by the host and by loaded plugins. Each type
carries a JSON schema that profiles of the type must satisfy.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	cmd.AddCommand(newList(), newSchema(), newValidate())
	return cmd
}

func newList() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "list",
		Aliases:           []string{"ls"},
		Short:             "List the known profile types",
		Args:              cobra.NoArgs,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pm, err := pluginManager(cmd)
			if err != nil {
				return err
			}
			var list []ProfileType
			for _, typ := range pm.Profiles.Types() {
				entry, ok := pm.Profiles.Get(typ)
				if !ok {
					continue
				}
				list = append(list, describe(entry))
			}
			format, err := enum.Get(cmd.Flags(), plugcmd.OutputFlag)
			if err != nil {
				return err
			}
			rows := make([]table.Row, 0, len(list))
			for _, item := range list {
				rows = append(rows, table.Row{item.Type, item.Owner, item.Title, item.Version})
			}
			return render.Write(cmd.OutOrStdout(), format, list, render.Table{
				Header: table.Row{"Type", "Owner", "Title", "Version"},
				Rows:   rows,
			})
		},
	}
	enum.VarP(cmd.Flags(), plugcmd.OutputFlag, "o", render.Formats, "output format")
	return cmd
}

func newSchema() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <type>",
		Short: "Print the JSON schema of a profile type",
		Long: `Print the JSON schema of a profile type. The schema merged into the global
profile schema is preferred; it may come from a newer version of the type.`,
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := pluginManager(cmd)
			if err != nil {
				return err
			}
			typ := args[0]
			def, ok, err := schema.NewStoreForLayout(pm.Layout).Definition(cmd.Context(), typ)
			if err != nil {
				return err
			}
			if !ok {
				entry, registered := pm.Profiles.Get(typ)
				if !registered {
					return fmt.Errorf("unknown profile type %q", typ)
				}
				if def, err = json.Marshal(entry.Config.Schema); err != nil {
					return fmt.Errorf("could not encode schema of profile type %q: %w", typ, err)
				}
			}
			var out bytes.Buffer
			if err := json.Indent(&out, def, "", "  "); err != nil {
				return fmt.Errorf("could not format schema of profile type %q: %w", typ, err)
			}
			out.WriteByte('\n')
			_, err = out.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

func newValidate() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <type> <file>",
		Short: "Check a profile in a YAML or JSON file against its profile type",
		Example: `  plughost profiles validate TestProfile profile.yaml`,
		Args:              cobra.ExactArgs(2),
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			pm, err := pluginManager(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("could not read profile: %w", err)
			}
			var values map[string]any
			if err := yaml.Unmarshal(data, &values); err != nil {
				return fmt.Errorf("could not parse profile %q: %w", args[1], err)
			}
			if err := pm.Profiles.Validate(args[0], values); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "The profile is a valid %s profile.\n", args[0])
			return nil
		},
	}
}

func describe(entry profiles.Entry) ProfileType {
	owner := entry.Owner
	if owner == profiles.HostOwner {
		owner = HostOwnerName
	}
	return ProfileType{
		Type:    entry.Config.Type,
		Owner:   owner,
		Title:   entry.Config.Schema.Title,
		Version: entry.Config.Schema.Version,
	}
}

func pluginManager(cmd *cobra.Command) (*manager.PluginManager, error) {
	pm := plugctx.FromContext(cmd.Context()).PluginManager()
	if pm == nil {
		return nil, fmt.Errorf("plugin manager is not available")
	}
	return pm, nil
}
