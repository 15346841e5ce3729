// Package manager loads installed plugins into the host CLI. For every plugin
// in the manifest it reads the configuration, builds and validates the
// plugin's command group, splices admitted groups into the host command tree
// and registers their profile types. Finally it resolves the override
// settings against all loaded plugins.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"ocm.software/open-component-model/plughost/plugin/manager/definitions"
	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/loader"
	"ocm.software/open-component-model/plughost/plugin/manager/manifest"
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/overrides"
	"ocm.software/open-component-model/plughost/plugin/manager/profiles"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/plugin/manager/validation"
	"ocm.software/open-component-model/plughost/settings"
)

// PluginManager manages the installed plugins of a host CLI.
type PluginManager struct {
	Host     types.HostInfo
	Layout   types.Layout
	Tracker  *issues.Tracker
	Manifest *manifest.Store
	Configs  *loader.Loader
	Profiles *profiles.Registry
	Settings *settings.Store
	Modules  modules.Loader
	Catalog  overrides.Catalog

	validator *validation.Validator
	overrides *overrides.Resolver

	mu sync.RWMutex
	// merged are the command groups spliced into the host tree by plugin.
	merged   map[string]*types.CommandDefinition
	order    []string
	loaded   []*types.PluginConfigProperties
	registry *overrides.Registry
}

// NewPluginManager creates a PluginManager for the host CLI whose files live in layout.
func NewPluginManager(host types.HostInfo, layout types.Layout, opts ...OptionFn) (*PluginManager, error) {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.Loader == nil {
		o.Loader = modules.NewDefaultLoader()
	}
	if o.ConfigValidator == nil {
		v, err := validation.NewSchemaValidator()
		if err != nil {
			return nil, fmt.Errorf("could not create configuration validator: %w", err)
		}
		o.ConfigValidator = v
	}
	catalog := overrides.DefaultCatalog()
	if o.Catalog != nil {
		catalog = *o.Catalog
	}

	tracker := issues.NewTracker()
	registry := profiles.NewRegistry()
	if err := registry.Register(profiles.HostOwner, o.HostProfiles); err != nil {
		return nil, fmt.Errorf("could not register host profiles: %w", err)
	}

	return &PluginManager{
		Host:      host,
		Layout:    layout,
		Tracker:   tracker,
		Manifest:  manifest.NewStore(layout.ManifestPath()),
		Configs:   loader.New(layout.InstallRoot(), host, tracker, definitions.NewResolver(o.Loader)),
		Profiles:  registry,
		Settings:  settings.NewStore(layout.Home),
		Modules:   o.Loader,
		Catalog:   catalog,
		validator: validation.New(host, tracker, o.Loader, o.ConfigValidator),
		overrides: overrides.NewResolver(host, catalog, o.Loader, tracker),
		merged:    map[string]*types.CommandDefinition{},
		registry:  overrides.NewRegistry(),
	}, nil
}

// Init creates the manifest when it does not exist yet.
func (pm *PluginManager) Init(ctx context.Context) error {
	return pm.Manifest.Ensure(ctx)
}

// LoadAll adds every installed plugin to hostTree in manifest order and
// resolves the override settings. Problems of individual plugins are tracked
// as issues; only a failure to read the manifest is returned.
func (pm *PluginManager) LoadAll(ctx context.Context, hostTree *types.CommandDefinition) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	entries, err := pm.Manifest.ReadAll(ctx)
	if err != nil {
		return err
	}

	pm.loaded = pm.loaded[:0]
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		props := pm.addPlugin(ctx, hostTree, pair.Key)
		if props != nil {
			pm.loaded = append(pm.loaded, props)
		}
	}

	if withIssues := pm.Tracker.Plugins(); len(withIssues) > 0 {
		slog.InfoContext(ctx, "plugins loaded with issues", slog.Any("plugins", withIssues))
	}

	snapshot, err := pm.Settings.Load(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not read settings, using built-in implementations", slog.String("error", err.Error()))
		snapshot = settings.Default()
	}
	pm.registry = pm.overrides.Resolve(ctx, pm.loaded, snapshot)
	return nil
}

// addPlugin loads, validates and merges one plugin. It returns the plugin's
// configuration when it could be loaded, admitted or not.
func (pm *PluginManager) addPlugin(ctx context.Context, hostTree *types.CommandDefinition, name string) *types.PluginConfigProperties {
	pm.Tracker.Clear(name)
	if previous, ok := pm.merged[name]; ok {
		definitions.RemoveCandidate(hostTree, previous)
	}
	pm.Profiles.Unregister(name)
	pm.forget(name)

	props, group, err := pm.load(ctx, name)
	if err != nil {
		pm.Tracker.Record(name, issues.ConfigError, err.Error())
		pm.logResult(ctx, name, false)
		return nil
	}

	validated, admitted := pm.validator.Validate(ctx, validation.Target{
		Props:            props,
		Group:            group,
		HostTree:         hostTree,
		HostProfileTypes: pm.Profiles.Types(),
	})
	if admitted {
		admitted = pm.merge(ctx, hostTree, props, validated)
	}
	pm.logResult(ctx, name, admitted)
	return props
}

func (pm *PluginManager) merge(ctx context.Context, hostTree *types.CommandDefinition, props *types.PluginConfigProperties, group *types.CommandDefinition) bool {
	name := props.PluginName
	if len(group.Children) == 0 {
		// overrides only
		group = nil
	} else if !definitions.MergeCandidate(hostTree, group, pm.Tracker, name) {
		return false
	}
	if len(props.Config.Profiles) > 0 {
		if err := pm.Profiles.Register(name, props.Config.Profiles); err != nil {
			definitions.RemoveCandidate(hostTree, group)
			pm.Tracker.Record(name, issues.CommandError, fmt.Sprintf("Unable to register the plugin's profiles: %v", err))
			slog.DebugContext(ctx, "removed plugin commands after profile registration failed", slog.String("plugin", name))
			return false
		}
	}
	if group != nil {
		pm.merged[name] = group
	}
	pm.order = append(pm.order, name)
	return true
}

func (pm *PluginManager) load(ctx context.Context, name string) (*types.PluginConfigProperties, *types.CommandDefinition, error) {
	props, err := pm.Configs.Load(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	group, err := pm.Configs.CommandGroup(ctx, props)
	if err != nil {
		return nil, nil, err
	}
	return props, group, nil
}

func (pm *PluginManager) logResult(ctx context.Context, name string, admitted bool) {
	if admitted {
		slog.DebugContext(ctx, "plugin loaded successfully", slog.String("plugin", name))
		return
	}
	slog.WarnContext(ctx, "plugin was not loaded", slog.String("plugin", name), slog.Any("issues", pm.Tracker.List(name)))
}

func (pm *PluginManager) forget(name string) {
	delete(pm.merged, name)
	pm.order = slices.DeleteFunc(pm.order, func(n string) bool { return n == name })
}

// Validate validates an installed plugin against hostTree without changing
// it. The plugin's own previously merged command group is ignored so that an
// admitted plugin does not conflict with itself. The tracker holds the
// plugin's issues afterwards.
func (pm *PluginManager) Validate(ctx context.Context, hostTree *types.CommandDefinition, name string) bool {
	pm.mu.RLock()
	own := pm.merged[name]
	pm.mu.RUnlock()

	pm.Tracker.Clear(name)
	props, group, err := pm.load(ctx, name)
	if err != nil {
		pm.Tracker.Record(name, issues.ConfigError, err.Error())
		return false
	}

	view := hostTree
	if hostTree != nil && own != nil {
		copied := *hostTree
		copied.Children = slices.DeleteFunc(slices.Clone(hostTree.Children), func(c *types.CommandDefinition) bool {
			return c == own
		})
		view = &copied
	}
	_, admitted := pm.validator.Validate(ctx, validation.Target{
		Props:            props,
		Group:            group,
		HostTree:         view,
		HostProfileTypes: pm.Profiles.TypesExcept(name),
	})
	return admitted
}

// Group returns the command group merged for a plugin.
func (pm *PluginManager) Group(name string) (*types.CommandDefinition, bool) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	group, ok := pm.merged[name]
	return group, ok
}

// Admitted returns the names of the plugins whose commands were merged, in merge order.
func (pm *PluginManager) Admitted() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return slices.Clone(pm.order)
}

// Loaded returns the configurations of every plugin that could be loaded.
func (pm *PluginManager) Loaded() []*types.PluginConfigProperties {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return slices.Clone(pm.loaded)
}

// Overrides returns the overrides resolved by the last LoadAll.
func (pm *PluginManager) Overrides() *overrides.Registry {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.registry
}
