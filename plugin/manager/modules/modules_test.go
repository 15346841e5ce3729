package modules

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

func TestFileLoaderResolve(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()
	r.NoError(os.WriteFile(filepath.Join(dir, "handler.sh"), []byte("#!/bin/sh\n"), 0o755))
	r.NoError(os.MkdirAll(filepath.Join(dir, "folder"), 0o755))

	loader := NewFileLoader(".sh")

	resolved, err := loader.Resolve(filepath.Join(dir, "handler.sh"))
	r.NoError(err)
	r.Equal(filepath.Join(dir, "handler.sh"), resolved)

	resolved, err = loader.Resolve(filepath.Join(dir, "handler"))
	r.NoError(err, "extension candidates are tried")
	r.Equal(filepath.Join(dir, "handler.sh"), resolved)

	_, err = loader.Resolve(filepath.Join(dir, "folder"))
	r.ErrorIs(err, ErrModuleNotFound, "directories are not modules")

	_, err = loader.Resolve(filepath.Join(dir, "missing"))
	r.ErrorIs(err, ErrModuleNotFound)
}

func TestFileModuleDefinition(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()
	yamlDef := filepath.Join(dir, "foo.definition.yaml")
	r.NoError(os.WriteFile(yamlDef, []byte(`
name: foo
description: the foo group
type: group
children: []
`), 0o644))

	m, err := NewFileLoader().Load(t.Context(), yamlDef)
	r.NoError(err)
	provider, ok := m.(DefinitionProvider)
	r.True(ok)
	def, err := provider.Definition()
	r.NoError(err)
	r.Equal("foo", def.Name)
	r.Equal(types.GroupType, def.Type)
	r.NotNil(def.Children, "an empty children list is kept")
	r.Empty(def.Children)

	broken := filepath.Join(dir, "broken.json")
	r.NoError(os.WriteFile(broken, []byte(`{"name": [`), 0o644))
	_, err = NewFileModule(broken).Definition()
	r.ErrorContains(err, "could not decode definition module")
}

func TestFileModuleExec(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	r := require.New(t)
	dir := t.TempDir()
	script := filepath.Join(dir, "hook")
	r.NoError(os.WriteFile(script, []byte("#!/bin/sh\nif [ \"$1\" = fail ]; then echo broken >&2; exit 3; fi\necho \"ran $1\"\n"), 0o755))

	m := NewFileModule(script)
	out, err := m.Exec(t.Context(), nil, "post-install")
	r.NoError(err)
	r.Equal("ran post-install\n", string(out))

	_, err = m.Exec(t.Context(), nil, "fail")
	r.ErrorContains(err, "broken")
}

func TestStaticAndChain(t *testing.T) {
	r := require.New(t)
	def := &DefinitionModule{ModulePath: "/virtual/foo", Def: &types.CommandDefinition{Name: "foo"}}
	static := Static{"/virtual/foo": def}
	chain := Chain{static, NewFileLoader()}

	resolved, err := chain.Resolve("/virtual/foo")
	r.NoError(err)
	r.Equal("/virtual/foo", resolved)

	m, err := chain.Load(t.Context(), "/virtual/foo")
	r.NoError(err)
	r.Same(def, m)

	_, err = chain.Load(t.Context(), filepath.Join(t.TempDir(), "nothing"))
	r.ErrorIs(err, ErrModuleNotFound)

	_, err = Chain{}.Resolve("x")
	r.ErrorIs(err, ErrModuleNotFound)
}

func TestRuntimePath(t *testing.T) {
	root := filepath.Join(string(filepath.Separator), "plugins", "sample")
	require.Equal(t, filepath.Join(root, "lib", "handler"), RuntimePath(root, "./lib/handler"))
	abs := filepath.Join(string(filepath.Separator), "opt", "handler")
	require.Equal(t, abs, RuntimePath(root, abs))
}
