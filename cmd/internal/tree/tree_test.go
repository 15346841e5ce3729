package tree

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

func hostCommand() *cobra.Command {
	root := &cobra.Command{Use: "plughost", Short: "host"}
	plugins := &cobra.Command{Use: "plugins", Short: "manage plugins", Aliases: []string{"plugin"}}
	plugins.AddCommand(&cobra.Command{Use: "list", Short: "list plugins", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(plugins, &cobra.Command{Use: "version", Short: "print the version", Run: func(*cobra.Command, []string) {}})
	return root
}

func TestFromCobra(t *testing.T) {
	r := require.New(t)
	root := hostCommand()
	Mount(root, Plugin{Name: "sample-plugin"}, &types.CommandDefinition{
		Name: "sample", Type: types.GroupType, Children: []*types.CommandDefinition{},
	})

	def := FromCobra(root)
	r.Equal(types.GroupType, def.Type)
	r.Len(def.Children, 2, "mounted plugin groups are not part of the host tree")

	plugins := def.Child("plugins")
	r.NotNil(plugins)
	r.Equal(types.GroupType, plugins.Type)
	r.Equal([]string{"plugin"}, plugins.Aliases)
	r.Equal("manage plugins", plugins.Description)

	version := def.Child("version")
	r.Equal(types.CommandKind, version.Type)
	r.Equal("plughost version", version.Handler)
}

func writeHandler(t *testing.T, dir, name, script string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o700))
	return path
}

func TestMountAndRun(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script handlers are not executable on windows")
	}
	r := require.New(t)
	dir := t.TempDir()
	greet := writeHandler(t, dir, "greet.sh", `echo "hello $* from $PLUGHOST_PLUGIN_NAME"`)
	prepare := writeHandler(t, dir, "prepare.sh", `echo "preparing"`)
	fail := writeHandler(t, dir, "fail.sh", `echo "broken" >&2; exit 3`)

	group := &types.CommandDefinition{
		Name: "sample", Description: "sample plugin", Type: types.GroupType,
		Children: []*types.CommandDefinition{
			{Name: "greet", Description: "greet", Type: types.CommandKind, Handler: greet},
			{Name: "chain", Description: "chain", Type: types.CommandKind, ChainedHandlers: []types.ChainedHandler{
				{Handler: prepare, Silent: true},
				{Handler: greet},
			}},
			{Name: "fail", Description: "fail", Type: types.CommandKind, Handler: fail},
		},
	}

	execute := func(args ...string) (string, string, error) {
		root := hostCommand()
		Mount(root, Plugin{Name: "sample-plugin", RootDir: dir}, group)
		var out, errOut bytes.Buffer
		root.SetOut(&out)
		root.SetErr(&errOut)
		root.SetArgs(args)
		err := root.ExecuteContext(t.Context())
		return out.String(), errOut.String(), err
	}

	out, _, err := execute("sample", "greet", "--name", "world")
	r.NoError(err)
	r.Equal("hello --name world from sample-plugin\n", out)

	out, _, err = execute("sample", "chain", "you")
	r.NoError(err)
	r.Equal("hello you from sample-plugin\n", out)

	_, errOut, err := execute("sample", "fail")
	r.ErrorContains(err, `command "plughost sample fail" of plugin "sample-plugin" failed`)
	r.Contains(errOut, "broken")

	out, _, err = execute("sample")
	r.NoError(err)
	r.Contains(out, "greet")
}

func TestHandlerArgs(t *testing.T) {
	root := &cobra.Command{Use: "plughost"}
	root.PersistentFlags().String("home", "", "")
	root.PersistentFlags().StringP("config", "c", "", "")
	root.PersistentFlags().Bool("debug", false, "")
	root.PersistentFlags().Lookup("debug").NoOptDefVal = "true"
	cmd := &cobra.Command{Use: "greet", DisableFlagParsing: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(cmd)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "no host flags", args: []string{"--name", "world"}, want: []string{"--name", "world"}},
		{name: "separate value", args: []string{"--home", "/tmp/home", "x"}, want: []string{"x"}},
		{name: "inline value", args: []string{"--home=/tmp/home", "x"}, want: []string{"x"}},
		{name: "shorthand", args: []string{"-c", "config.yaml", "-v"}, want: []string{"-v"}},
		{name: "boolean", args: []string{"--debug", "x"}, want: []string{"x"}},
		{name: "after terminator", args: []string{"x", "--", "--home", "y"}, want: []string{"x", "--", "--home", "y"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, HandlerArgs(cmd, tc.args))
		})
	}
}
