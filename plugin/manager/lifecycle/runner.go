// Package lifecycle runs the post-install and pre-uninstall hooks of plugins.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/overrides"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/settings"
)

// Action names a lifecycle hook.
type Action string

const (
	PostInstall  Action = "post-install"
	PreUninstall Action = "pre-uninstall"
)

// LifeCycle is implemented by modules handling lifecycle hooks in-process.
type LifeCycle interface {
	PostInstall(ctx context.Context) error
	PreUninstall(ctx context.Context) error
}

// ConfigSource loads the configuration of an installed plugin.
type ConfigSource interface {
	Load(ctx context.Context, pluginName string) (*types.PluginConfigProperties, error)
}

// Runner runs lifecycle hooks one plugin at a time.
type Runner struct {
	loader   modules.Loader
	configs  ConfigSource
	settings *settings.Store
	catalog  overrides.Catalog
}

// NewRunner creates a Runner. Installed plugin configurations are read from
// configs and override settings are reverted through store.
func NewRunner(loader modules.Loader, configs ConfigSource, store *settings.Store, catalog overrides.Catalog) *Runner {
	return &Runner{loader: loader, configs: configs, settings: store, catalog: catalog}
}

// PostInstall runs the post-install hook of a freshly installed plugin.
func (r *Runner) PostInstall(ctx context.Context, props *types.PluginConfigProperties) error {
	return r.run(ctx, props, PostInstall)
}

// PreUninstall runs the pre-uninstall hook of an installed plugin. When the
// plugin provides an active override, the built-in implementation is
// reinstated before the hook runs.
func (r *Runner) PreUninstall(ctx context.Context, pluginName string) error {
	if err := r.reinstateDefaults(ctx, pluginName); err != nil {
		return wrap(pluginName, PreUninstall, err)
	}
	props, err := r.configs.Load(ctx, pluginName)
	if err != nil {
		return wrap(pluginName, PreUninstall, err)
	}
	return r.run(ctx, props, PreUninstall)
}

func (r *Runner) run(ctx context.Context, props *types.PluginConfigProperties, action Action) error {
	name := props.PluginName
	var lifeCyclePath string
	if props.Config != nil {
		lifeCyclePath = props.Config.PluginLifeCycle
	}
	if lifeCyclePath == "" {
		if setting, ok := r.requiredFor(props); ok {
			return wrap(name, action, fmt.Errorf(
				"the plugin %q overrides the %s without providing a lifecycle class", name, setting.Title))
		}
		slog.DebugContext(ctx, "plugin has no lifecycle hooks", slog.String("plugin", name), slog.String("action", string(action)))
		return nil
	}

	path := modules.RuntimePath(props.RootDir, lifeCyclePath)
	module, err := r.loader.Load(ctx, path)
	if err != nil {
		return wrap(name, action, err)
	}
	slog.DebugContext(ctx, "running plugin lifecycle hook",
		slog.String("plugin", name), slog.String("action", string(action)), slog.String("module", module.Path()))
	if err := invoke(ctx, module, action); err != nil {
		return wrap(name, action, err)
	}
	return nil
}

func invoke(ctx context.Context, module modules.Module, action Action) error {
	switch m := module.(type) {
	case LifeCycle:
		if action == PostInstall {
			return m.PostInstall(ctx)
		}
		return m.PreUninstall(ctx)
	case modules.Executable:
		out, err := m.Exec(ctx, nil, string(action))
		if len(out) > 0 {
			slog.DebugContext(ctx, "lifecycle hook output", slog.String("module", m.Path()), slog.String("output", string(out)))
		}
		return err
	default:
		return fmt.Errorf("the module %q does not implement the plugin lifecycle", module.Path())
	}
}

// requiredFor returns the setting a known provider overrides, which makes
// lifecycle hooks mandatory for it. Other overriding plugins may omit them.
func (r *Runner) requiredFor(props *types.PluginConfigProperties) (overrides.Setting, bool) {
	for _, known := range r.catalog.Known {
		if known.PluginName == props.PluginName || known.PluginName == props.PackageName {
			if setting, ok := r.catalog.Setting(known.Setting); ok {
				return setting, true
			}
		}
	}
	return overrides.Setting{}, false
}

func (r *Runner) reinstateDefaults(ctx context.Context, pluginName string) error {
	if r.settings == nil {
		return nil
	}
	snapshot, err := r.settings.Load(ctx)
	if err != nil {
		return err
	}
	var reverted []overrides.Setting
	for _, setting := range r.catalog.Settings {
		value := snapshot.Override(setting.Name)
		if value.IsBuiltin() || r.catalog.PluginFor(setting.Name, value) != pluginName {
			continue
		}
		snapshot.SetOverride(setting.Name, settings.Builtin)
		reverted = append(reverted, setting)
	}
	if len(reverted) == 0 {
		return nil
	}
	if err := r.settings.Save(ctx, snapshot); err != nil {
		return err
	}
	for _, setting := range reverted {
		slog.WarnContext(ctx, fmt.Sprintf("The plugin %q provided the active %s. The default %s has been reinstated.",
			pluginName, setting.Title, setting.Title), slog.String("setting", setting.Name))
	}
	return nil
}

func wrap(pluginName string, action Action, err error) error {
	return types.NewError(types.ErrLifeCycle,
		fmt.Sprintf("unable to perform the %s action of plugin %q", action, pluginName), err)
}
