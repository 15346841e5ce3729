package overrides_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/overrides"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/settings"
)

var host = types.HostInfo{PackageName: "@acme/cli", Version: "8.1.0"}

type credentialModule struct{ path string }

func (m credentialModule) Path() string { return m.path }

func plugin(name, root string, overrides map[string]string) *types.PluginConfigProperties {
	return &types.PluginConfigProperties{
		PluginName:  name,
		PackageName: name,
		RootDir:     root,
		Config:      &types.FrameworkConfig{Overrides: overrides},
	}
}

func snapshot(value settings.Override) *settings.Settings {
	s := settings.Default()
	s.SetOverride(settings.CredentialManager, value)
	return s
}

func TestResolveBuiltin(t *testing.T) {
	for _, value := range []settings.Override{settings.Builtin, settings.Override(host.PackageName)} {
		t.Run(string(value), func(t *testing.T) {
			r := require.New(t)
			root := t.TempDir()
			loader := modules.Static{filepath.Join(root, "cm"): credentialModule{path: "cm"}}
			resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), loader, issues.NewTracker())
			registry := resolver.Resolve(t.Context(), []*types.PluginConfigProperties{
				plugin("@plughost/secrets-for-kubernetes", root, map[string]string{settings.CredentialManager: "cm"}),
			}, snapshot(value))
			r.Zero(registry.Len())
			_, ok := registry.Get(settings.CredentialManager)
			r.False(ok)
		})
	}
}

func TestResolveKnownInstalledPlugin(t *testing.T) {
	r := require.New(t)
	root := t.TempDir()
	module := credentialModule{path: filepath.Join(root, "lib", "cm")}
	loader := modules.Static{filepath.Join(root, "lib", "cm"): module}
	tracker := issues.NewTracker()
	resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), loader, tracker)

	registry := resolver.Resolve(t.Context(), []*types.PluginConfigProperties{
		plugin("other", t.TempDir(), nil),
		plugin("@plughost/secrets-for-kubernetes", root, map[string]string{settings.CredentialManager: "./lib/cm"}),
	}, snapshot("Secrets for Kubernetes"))

	result, ok := registry.Get(settings.CredentialManager)
	r.True(ok)
	r.False(result.Failed())
	r.Equal("@plughost/secrets-for-kubernetes", result.Plugin())
	impl, err := result.Implementation()
	r.NoError(err)
	r.Equal(module, impl)
	r.Empty(tracker.List("@plughost/secrets-for-kubernetes"))
}

func TestResolveAbsoluteOverridePath(t *testing.T) {
	r := require.New(t)
	abs := filepath.Join(t.TempDir(), "cm")
	loader := modules.Static{abs: credentialModule{path: abs}}
	resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), loader, issues.NewTracker())
	registry := resolver.Resolve(t.Context(), []*types.PluginConfigProperties{
		plugin("@plughost/vault-credential-manager", t.TempDir(), map[string]string{settings.CredentialManager: abs}),
	}, snapshot("@plughost/vault-credential-manager"))
	result, ok := registry.Get(settings.CredentialManager)
	r.True(ok)
	r.False(result.Failed())
}

func TestResolveUnknownPluginWarns(t *testing.T) {
	r := require.New(t)
	root := t.TempDir()
	loader := modules.Static{filepath.Join(root, "cm"): credentialModule{path: "cm"}}
	tracker := issues.NewTracker()
	resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), loader, tracker)

	registry := resolver.Resolve(t.Context(), []*types.PluginConfigProperties{
		plugin("homegrown-cm", root, map[string]string{settings.CredentialManager: "cm"}),
	}, snapshot("homegrown-cm"))

	result, ok := registry.Get(settings.CredentialManager)
	r.True(ok)
	r.False(result.Failed(), "unvetted plugins are still used")
	list := tracker.List("homegrown-cm")
	r.Len(list, 1)
	r.Equal(issues.Warning, list[0].Severity)
	r.Contains(list[0].Text, "has not been vetted")
}

func TestResolveNotInstalled(t *testing.T) {
	r := require.New(t)
	root := t.TempDir()
	loader := modules.Static{filepath.Join(root, "cm"): credentialModule{path: "cm"}}
	tracker := issues.NewTracker()
	resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), loader, tracker)

	registry := resolver.Resolve(t.Context(), []*types.PluginConfigProperties{
		plugin("@plughost/vault-credential-manager", root, map[string]string{settings.CredentialManager: "cm"}),
		plugin("no-overrides", root, nil),
	}, snapshot("Secrets for Kubernetes"))

	result, ok := registry.Get(settings.CredentialManager)
	r.True(ok)
	r.True(result.Failed())
	r.Contains(result.Diagnostic(), "@plughost/secrets-for-kubernetes")
	r.Contains(result.Diagnostic(), "@plughost/vault-credential-manager")
	r.NotContains(result.Diagnostic(), "no-overrides")

	impl, err := result.Implementation()
	r.Nil(impl)
	r.ErrorIs(err, types.ErrOverride)
	r.True(tracker.HasSeverity("@plughost/secrets-for-kubernetes", issues.OverrideError))
}

func TestResolvePluginWithoutOverride(t *testing.T) {
	r := require.New(t)
	resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), modules.Static{}, issues.NewTracker())
	registry := resolver.Resolve(t.Context(), []*types.PluginConfigProperties{
		plugin("@plughost/secrets-for-kubernetes", t.TempDir(), nil),
	}, snapshot("Secrets for Kubernetes"))
	result, _ := registry.Get(settings.CredentialManager)
	r.True(result.Failed())
	r.Contains(result.Diagnostic(), "No installed plugin overrides the Credential Manager")
}

func TestResolveLoadFailure(t *testing.T) {
	r := require.New(t)
	tracker := issues.NewTracker()
	resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), modules.NewFileLoader(), tracker)
	registry := resolver.Resolve(t.Context(), []*types.PluginConfigProperties{
		plugin("@plughost/secrets-for-kubernetes", t.TempDir(), map[string]string{settings.CredentialManager: "missing"}),
	}, snapshot("Secrets for Kubernetes"))
	result, ok := registry.Get(settings.CredentialManager)
	r.True(ok)
	r.True(result.Failed())
	r.Contains(result.Diagnostic(), "Unable to load")
	_, err := result.Implementation()
	r.ErrorIs(err, types.ErrOverride)
}

func TestResolveWithoutSettingsFile(t *testing.T) {
	resolver := overrides.NewResolver(host, overrides.DefaultCatalog(), modules.Static{}, issues.NewTracker())
	require.Zero(t, resolver.Resolve(t.Context(), nil, nil).Len())
}

func TestCatalog(t *testing.T) {
	r := require.New(t)
	c := overrides.DefaultCatalog()
	r.Equal("@plughost/secrets-for-kubernetes", c.PluginFor(settings.CredentialManager, "Secrets for Kubernetes"))
	r.Equal("@plughost/secrets-for-kubernetes", c.PluginFor(settings.CredentialManager, "@plughost/secrets-for-kubernetes"))
	r.Equal("custom", c.PluginFor(settings.CredentialManager, "custom"))
	r.True(c.IsKnownProvider("@plughost/vault-credential-manager"))
	r.False(c.IsKnownProvider("custom"))
	s, ok := c.Setting(settings.CredentialManager)
	r.True(ok)
	r.Equal("Credential Manager", s.Title)
}
