package plugins

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	plugcmd "ocm.software/open-component-model/plughost/cmd/internal/cmd"
	"ocm.software/open-component-model/plughost/cmd/setup"
	"ocm.software/open-component-model/plughost/internal/flags/file"
	"ocm.software/open-component-model/plughost/plugin/operations"
)

func newInstall() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [package...]",
		Short: "Install plugins",
		Long: `Install plugins from an npm registry, a local directory, a local tarball or a URL.

A package is named like an npm install argument. With --file, the plugins of a
plugin manifest (for example the plugins.json of another installation) are
installed; packages given as arguments then select plugins from the file.

Installed plugins are validated; problems are reported but do not undo the install.`,
		Example: `  plughost plugins install @acme/sample-plugin
  plughost plugins install @acme/sample-plugin@^1.2 --registry https://npm.acme.example/ --login
  plughost plugins install ./sample-plugin
  plughost plugins install --file plugins.json`,
		RunE:              runInstall,
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	addRegistryFlags(cmd)
	file.VarP(cmd.Flags(), plugcmd.FileFlag, "f", "", "plugin manifest to install the plugins of")
	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ops, err := packageOperations(cmd)
	if err != nil {
		return err
	}
	pm, err := pluginManager(cmd)
	if err != nil {
		return err
	}
	if err := login(cmd, ops, defaultRegistry(cmd)); err != nil {
		return err
	}

	manifestFile, err := file.Get(cmd.Flags(), plugcmd.FileFlag)
	if err != nil {
		return err
	}

	var installed []operations.Installed
	var errs []error
	if manifestFile.IsSet() {
		path, err := manifestFile.RequireFile()
		if err != nil {
			return err
		}
		installed, err = ops.InstallFromFile(ctx, path, args, registry(cmd))
		errs = append(errs, err)
	} else {
		if len(args) == 0 {
			return fmt.Errorf("name at least one package or a plugin manifest with --%s", plugcmd.FileFlag)
		}
		for _, spec := range args {
			result, err := ops.Install(ctx, spec, defaultRegistry(cmd))
			if err != nil {
				errs = append(errs, err)
				continue
			}
			installed = append(installed, result)
		}
	}

	hostTree, err := setup.Plugins(cmd, cmd.Root())
	if err != nil {
		errs = append(errs, err)
	}
	out := cmd.OutOrStdout()
	for _, result := range installed {
		fmt.Fprintf(out, "Installed plugin %q version %s from %s\n", result.Name, result.Entry.Version, result.Entry.Location)
		if hostTree == nil {
			continue
		}
		if !pm.Validate(ctx, hostTree, result.Name) {
			fmt.Fprintf(out, "The plugin %q was installed but cannot be loaded:\n", result.Name)
		}
		writeIssues(out, pm.Tracker.List(result.Name))
	}
	return errors.Join(errs...)
}
