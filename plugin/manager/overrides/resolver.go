// Package overrides selects the plugin supplied implementations of
// overridable framework components. Resolution never fails: a setting that
// cannot be satisfied resolves to a result that fails when it is used.
package overrides

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/settings"
)

// Resolver resolves override settings against the installed plugins.
type Resolver struct {
	host    types.HostInfo
	catalog Catalog
	loader  modules.Loader
	tracker *issues.Tracker
}

// NewResolver creates a Resolver loading override modules through loader.
func NewResolver(host types.HostInfo, catalog Catalog, loader modules.Loader, tracker *issues.Tracker) *Resolver {
	return &Resolver{host: host, catalog: catalog, loader: loader, tracker: tracker}
}

// Resolve builds the registry of overrides selected by the settings snapshot.
func (r *Resolver) Resolve(ctx context.Context, configs []*types.PluginConfigProperties, snapshot *settings.Settings) *Registry {
	registry := NewRegistry()
	for _, setting := range r.catalog.Settings {
		value := snapshot.Override(setting.Name)
		if value.IsBuiltin() || string(value) == r.host.PackageName {
			slog.DebugContext(ctx, "using built-in implementation", slog.String("setting", setting.Name))
			continue
		}
		registry.Set(r.resolveSetting(ctx, setting, value, configs))
	}
	return registry
}

func (r *Resolver) resolveSetting(ctx context.Context, setting Setting, value settings.Override, configs []*types.PluginConfigProperties) Result {
	plugin := string(value)
	if known, ok := r.catalog.Lookup(setting.Name, plugin); ok {
		plugin = known.PluginName
	} else {
		warning := fmt.Sprintf("The %s %q has not been vetted. Use it at your own risk.", setting.Title, value)
		slog.WarnContext(ctx, warning, slog.String("setting", setting.Name), slog.String("plugin", plugin))
		r.record(plugin, issues.Warning, warning)
	}

	var provider *types.PluginConfigProperties
	var offering []string
	for _, props := range configs {
		if props == nil || props.Config == nil || props.Config.Overrides[setting.Name] == "" {
			continue
		}
		offering = append(offering, props.PluginName)
		if props.PluginName == plugin || props.PackageName == plugin {
			provider = props
		}
	}

	if provider == nil {
		diagnostic := fmt.Sprintf("The plugin %q, selected as %s by the setting %q, is not installed or does not override the %s.",
			plugin, setting.Title, setting.Name, setting.Title)
		if len(offering) > 0 {
			diagnostic += fmt.Sprintf(" Plugins overriding the %s: %s.", setting.Title, strings.Join(offering, ", "))
		} else {
			diagnostic += fmt.Sprintf(" No installed plugin overrides the %s.", setting.Title)
		}
		return r.fail(ctx, setting, plugin, diagnostic)
	}

	path := modules.RuntimePath(provider.RootDir, provider.Config.Overrides[setting.Name])
	module, err := r.load(ctx, path)
	if err != nil {
		return r.fail(ctx, setting, plugin, fmt.Sprintf(
			"Unable to load the %s override %q of plugin %q: %v", setting.Title, path, plugin, err))
	}
	slog.DebugContext(ctx, "resolved override",
		slog.String("setting", setting.Name), slog.String("plugin", plugin), slog.String("module", module.Path()))
	return Resolved(setting.Name, plugin, module)
}

func (r *Resolver) load(ctx context.Context, path string) (mod modules.Module, err error) {
	if r.loader == nil {
		return nil, fmt.Errorf("no module loader configured")
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("loading module panicked: %v", p)
		}
	}()
	return r.loader.Load(ctx, path)
}

func (r *Resolver) fail(ctx context.Context, setting Setting, plugin, diagnostic string) Result {
	slog.ErrorContext(ctx, diagnostic, slog.String("setting", setting.Name), slog.String("plugin", plugin))
	r.record(plugin, issues.OverrideError, diagnostic)
	return Failing(setting.Name, plugin, diagnostic)
}

func (r *Resolver) record(plugin string, severity issues.Severity, text string) {
	if r.tracker != nil {
		r.tracker.Record(plugin, severity, text)
	}
}
