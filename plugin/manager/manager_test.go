package manager_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/loader"
	"ocm.software/open-component-model/plughost/plugin/manager/manifest"
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/settings"
)

var host = types.HostInfo{
	PackageName:      "@acme/cli",
	Version:          "8.1.0",
	FrameworkPackage: "@acme/framework",
	FrameworkVersion: "5.2.0",
}

func hostTree() *types.CommandDefinition {
	return &types.CommandDefinition{
		Description: "host",
		Type:        types.GroupType,
		Children: []*types.CommandDefinition{
			{Name: "plugins", Description: "manage plugins", Type: types.GroupType, Aliases: []string{"plugin"}},
		},
	}
}

type env struct {
	layout  types.Layout
	manager *manager.PluginManager
	entries *manifest.Entries
}

func newEnv(t *testing.T, opts ...manager.OptionFn) *env {
	t.Helper()
	layout := types.Layout{Home: t.TempDir()}
	pm, err := manager.NewPluginManager(host, layout, append([]manager.OptionFn{
		manager.WithHostProfiles(types.ProfileTypeConfiguration{Type: "base", Schema: types.ProfileSchema{Type: "object"}}),
	}, opts...)...)
	require.NoError(t, err)
	require.NoError(t, pm.Init(t.Context()))
	return &env{layout: layout, manager: pm, entries: manifest.NewEntries()}
}

// install places a plugin package in the install root and records it in the manifest.
func (e *env) install(t *testing.T, name string, config map[string]any, files ...string) string {
	t.Helper()
	dir := loader.PluginDir(e.layout.InstallRoot(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	descriptor, err := json.Marshal(map[string]any{
		"name":             name,
		"version":          "1.0.0",
		"peerDependencies": map[string]string{host.FrameworkPackage: "^5.0.0"},
		"plughost":         config,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, loader.DescriptorFile), descriptor, 0o600))
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, f), []byte("#!/bin/sh\n"), 0o700))
	}
	e.entries.Set(name, manifest.Entry{Package: name, Location: "https://registry.npmjs.org/", Version: "1.0.0"})
	require.NoError(t, e.manager.Manifest.WriteAll(t.Context(), e.entries))
	return dir
}

func cmd(name, handler string) map[string]any {
	return map[string]any{"name": name, "description": name + " command", "type": "command", "handler": handler}
}

func sampleConfig() map[string]any {
	return map[string]any{
		"rootCommandDescription": "sample plugin",
		"definitions":            []any{cmd("foo", "./foo.sh"), cmd("bar", "./bar.sh")},
		"profiles": []any{map[string]any{
			"type":   "TestProfile",
			"schema": map[string]any{"type": "object", "title": "Test", "properties": map[string]any{"host": map[string]any{"type": "string"}}},
		}},
	}
}

func TestLoadAllAdmitsSamplePlugin(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	dir := e.install(t, "sample-plugin", sampleConfig(), "foo.sh", "bar.sh")

	tree := hostTree()
	r.NoError(e.manager.LoadAll(t.Context(), tree))

	r.Len(tree.Children, 2)
	group := tree.Child("sample-plugin")
	r.NotNil(group)
	r.Equal("sample plugin", group.Description)
	r.Len(group.Children, 2)
	r.Equal("foo", group.Children[0].Name)
	r.Equal("bar", group.Children[1].Name)
	r.Equal(filepath.Join(dir, "foo.sh"), group.Children[0].Handler)

	r.Contains(e.manager.Profiles.Types(), "TestProfile")
	r.Equal([]string{"sample-plugin"}, e.manager.Admitted())
	r.Len(e.manager.Loaded(), 1)
	r.True(e.manager.Tracker.Admissible("sample-plugin"))
}

func TestLoadAllRejectsCommandWithoutHandler(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	cfg := sampleConfig()
	cfg["definitions"] = []any{map[string]any{"name": "foo", "description": "foo", "type": "command"}}
	e.install(t, "broken-plugin", cfg)

	tree := hostTree()
	r.NoError(e.manager.LoadAll(t.Context(), tree))

	r.Nil(tree.Child("broken-plugin"))
	r.Len(tree.Children, 1)
	r.NotContains(e.manager.Profiles.Types(), "TestProfile")
	r.Empty(e.manager.Admitted())
	r.Equal([]string{"broken-plugin"}, e.manager.Tracker.Plugins())

	list := e.manager.Tracker.List("broken-plugin")
	r.NotEmpty(list)
	var found bool
	for _, i := range list {
		if i.Severity == issues.CommandError && strings.Contains(i.Text, "has no 'handler' property") {
			found = true
		}
	}
	r.True(found, "%v", list)
}

func TestLoadAllKeepsManifestOrderAndFirstWins(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	first := sampleConfig()
	first["name"] = "shared"
	first["profiles"] = nil
	second := sampleConfig()
	second["name"] = "SHARED"
	second["profiles"] = nil
	third := sampleConfig()
	third["profiles"] = nil

	e.install(t, "zeta-plugin", first, "foo.sh", "bar.sh")
	e.install(t, "alpha-plugin", second, "foo.sh", "bar.sh")
	e.install(t, "middle-plugin", third, "foo.sh", "bar.sh")

	tree := hostTree()
	r.NoError(e.manager.LoadAll(t.Context(), tree))

	r.Equal([]string{"zeta-plugin", "middle-plugin"}, e.manager.Admitted())
	r.Equal("shared", tree.Children[1].Name)
	r.Equal("middle-plugin", tree.Children[2].Name)

	cmdErrors := 0
	for _, i := range e.manager.Tracker.List("alpha-plugin") {
		if i.Severity == issues.CommandError {
			cmdErrors++
		}
	}
	r.Equal(1, cmdErrors)
}

func TestLoadAllRecordsConfigErrors(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	e.entries.Set("ghost", manifest.Entry{Package: "ghost", Location: "https://registry.npmjs.org/", Version: "1.0.0"})
	r.NoError(e.manager.Manifest.WriteAll(t.Context(), e.entries))

	tree := hostTree()
	r.NoError(e.manager.LoadAll(t.Context(), tree))
	r.True(e.manager.Tracker.HasSeverity("ghost", issues.ConfigError))
	r.Len(tree.Children, 1)
}

func TestLoadAllFailsOnUnreadableManifest(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	r.NoError(os.WriteFile(e.layout.ManifestPath(), []byte("{not json"), 0o600))
	err := e.manager.LoadAll(t.Context(), hostTree())
	r.ErrorIs(err, types.ErrIO)
}

func TestLoadAllRollsBackOnProfileRegistrationFailure(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	cfg := sampleConfig()
	cfg["profiles"] = []any{map[string]any{"type": "Broken", "schema": map[string]any{"type": "no-such-type"}}}
	e.install(t, "sample-plugin", cfg, "foo.sh", "bar.sh")

	tree := hostTree()
	r.NoError(e.manager.LoadAll(t.Context(), tree))
	r.Nil(tree.Child("sample-plugin"))
	r.Empty(e.manager.Admitted())
	r.False(e.manager.Tracker.Admissible("sample-plugin"))
}

func TestValidateIgnoresOwnGroup(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	e.install(t, "sample-plugin", sampleConfig(), "foo.sh", "bar.sh")
	tree := hostTree()
	r.NoError(e.manager.LoadAll(t.Context(), tree))

	first := e.manager.Validate(t.Context(), tree, "sample-plugin")
	firstIssues := e.manager.Tracker.List("sample-plugin")
	second := e.manager.Validate(t.Context(), tree, "sample-plugin")

	r.True(first, "%v", firstIssues)
	r.Equal(first, second)
	r.Equal(firstIssues, e.manager.Tracker.List("sample-plugin"))
	r.Len(tree.Children, 2, "validation does not change the tree")
}

func TestLoadAllIsRepeatable(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	e.install(t, "sample-plugin", sampleConfig(), "foo.sh", "bar.sh")
	tree := hostTree()
	r.NoError(e.manager.LoadAll(t.Context(), tree))
	r.NoError(e.manager.LoadAll(t.Context(), tree))
	r.Len(tree.Children, 2)
	r.Equal([]string{"sample-plugin"}, e.manager.Admitted())
}

type credentialModule struct{ path string }

func (m credentialModule) Path() string { return m.path }

func TestLoadAllResolvesOverrides(t *testing.T) {
	r := require.New(t)
	layoutHome := t.TempDir()
	layout := types.Layout{Home: layoutHome}
	name := "@plughost/secrets-for-kubernetes"
	cmPath := filepath.Join(loader.PluginDir(layout.InstallRoot(), name), "cm")
	pm, err := manager.NewPluginManager(host, layout,
		manager.WithModuleLoader(modules.Chain{modules.Static{cmPath: credentialModule{path: cmPath}}, modules.NewDefaultLoader()}))
	r.NoError(err)
	r.NoError(pm.Init(t.Context()))
	e := &env{layout: layout, manager: pm, entries: manifest.NewEntries()}
	e.install(t, name, map[string]any{
		"rootCommandDescription": "kubernetes secrets",
		"overrides":              map[string]any{"CredentialManager": "./cm"},
		"pluginLifeCycle":        "./hooks",
	})
	s := settings.Default()
	s.SetOverride(settings.CredentialManager, "Secrets for Kubernetes")
	r.NoError(pm.Settings.Save(t.Context(), s))

	tree := hostTree()
	r.NoError(pm.LoadAll(t.Context(), tree))
	r.Equal([]string{name}, pm.Admitted())
	r.Len(tree.Children, 1, "plugins without commands add no group")
	result, ok := pm.Overrides().Get(settings.CredentialManager)
	r.True(ok)
	impl, err := result.Implementation()
	r.NoError(err)
	r.Equal(cmPath, impl.Path())
}

func TestLoadAllWithSavedDefaultSettings(t *testing.T) {
	r := require.New(t)
	e := newEnv(t)
	e.install(t, "sample-plugin", sampleConfig(), "foo.sh", "bar.sh")
	r.NoError(e.manager.Settings.Save(t.Context(), settings.Default()))

	r.NoError(e.manager.LoadAll(t.Context(), hostTree()))
	r.Equal(0, e.manager.Overrides().Len())
	r.Empty(e.manager.Tracker.List("false"))
}
