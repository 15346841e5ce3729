package npm_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/plugin/npm"
)

// fakeBinary writes a script standing in for npm.
func fakeBinary(t *testing.T, script string) *npm.NPM {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	path := filepath.Join(t.TempDir(), "npm")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o700))
	return &npm.NPM{Binary: path}
}

func TestNPMRegistry(t *testing.T) {
	r := require.New(t)
	n := fakeBinary(t, `[ "$1 $2 $3" = "config get registry" ] && echo "https://registry.npmjs.org/" && exit 0
[ "$3" = "@acme:registry" ] && echo "undefined" && exit 0
exit 1
`)
	registry, err := n.Registry(t.Context())
	r.NoError(err)
	r.Equal("https://registry.npmjs.org/", registry)

	scope, err := n.ScopeRegistry(t.Context(), "@acme")
	r.NoError(err)
	r.Empty(scope)
}

func TestNPMFailure(t *testing.T) {
	r := require.New(t)
	n := fakeBinary(t, "echo 'E404 not found' >&2\nexit 1\n")
	err := n.Install(t.Context(), "missing-plugin", t.TempDir(), npm.RegistryInfo{Registry: "https://registry.npmjs.org/"})
	r.ErrorIs(err, types.ErrExternalTool)
	r.ErrorContains(err, "E404 not found")
	r.ErrorContains(err, "install missing-plugin -g --legacy-peer-deps")
}

func TestNPMUninstallArgs(t *testing.T) {
	r := require.New(t)
	out := filepath.Join(t.TempDir(), "args")
	n := fakeBinary(t, `echo "$@" > `+out+"\n")
	r.NoError(n.Uninstall(t.Context(), "@acme/plugin", "/prefix"))
	data, err := os.ReadFile(out)
	r.NoError(err)
	r.Equal("uninstall @acme/plugin --prefix /prefix -g\n", string(data))
}

func TestNPMView(t *testing.T) {
	r := require.New(t)
	n := fakeBinary(t, `echo '[{"name": "p", "version": "1.0.0"}, {"name": "p", "version": "1.1.0"}]'`+"\n")
	info, err := n.View(t.Context(), "p@^1")
	r.NoError(err)
	r.Equal(npm.PackageInfo{Name: "p", Version: "1.1.0"}, info)

	n = fakeBinary(t, `echo '{"name": "q", "version": "2.0.0"}'`+"\n")
	info, err = n.View(t.Context(), "q")
	r.NoError(err)
	r.Equal(npm.PackageInfo{Name: "q", Version: "2.0.0"}, info)
}
