package overrides

import (
	"slices"

	"ocm.software/open-component-model/plughost/settings"
)

// Setting is a framework component plugins may override.
type Setting struct {
	// Name is the key of the setting in the settings file and in a plugin's overrides.
	Name string
	// Title names the component in messages.
	Title string
}

// Supported are the settings the host can override.
var Supported = []Setting{
	{Name: settings.CredentialManager, Title: "Credential Manager"},
}

// Known is a vetted plugin providing an override.
type Known struct {
	Setting     string
	DisplayName string
	PluginName  string
}

// KnownProviders are the vetted override providers.
var KnownProviders = []Known{
	{
		Setting:     settings.CredentialManager,
		DisplayName: "Secrets for Kubernetes",
		PluginName:  "@plughost/secrets-for-kubernetes",
	},
	{
		Setting:     settings.CredentialManager,
		DisplayName: "Vault Credential Manager",
		PluginName:  "@plughost/vault-credential-manager",
	},
}

// Catalog answers questions about supported settings and their known providers.
type Catalog struct {
	Settings []Setting
	Known    []Known
}

// DefaultCatalog returns the catalog of the supported settings and known providers.
func DefaultCatalog() Catalog {
	return Catalog{Settings: slices.Clone(Supported), Known: slices.Clone(KnownProviders)}
}

// Setting returns the supported setting of the given name.
func (c Catalog) Setting(name string) (Setting, bool) {
	i := slices.IndexFunc(c.Settings, func(s Setting) bool { return s.Name == name })
	if i < 0 {
		return Setting{}, false
	}
	return c.Settings[i], true
}

// Lookup maps a setting value to a known provider. The value may be the
// provider's display name or its plugin name.
func (c Catalog) Lookup(setting, value string) (Known, bool) {
	i := slices.IndexFunc(c.Known, func(k Known) bool {
		return k.Setting == setting && (k.DisplayName == value || k.PluginName == value)
	})
	if i < 0 {
		return Known{}, false
	}
	return c.Known[i], true
}

// IsKnownProvider reports whether the plugin is a known provider of any setting.
func (c Catalog) IsKnownProvider(plugin string) bool {
	return slices.ContainsFunc(c.Known, func(k Known) bool { return k.PluginName == plugin })
}

// PluginFor returns the plugin a setting value selects.
func (c Catalog) PluginFor(setting string, value settings.Override) string {
	if known, ok := c.Lookup(setting, string(value)); ok {
		return known.PluginName
	}
	return string(value)
}
