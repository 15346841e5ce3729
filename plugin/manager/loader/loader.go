// Package loader reads the configuration of installed plugins from their
// package descriptors.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"

	"ocm.software/open-component-model/plughost/plugin/manager/definitions"
	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// DescriptorFile is the name of a plugin's package descriptor.
const DescriptorFile = "package.json"

// Loader loads plugin configurations from an install root in which every
// plugin lives in a directory named after its package.
type Loader struct {
	installRoot string
	host        types.HostInfo
	tracker     *issues.Tracker
	resolver    *definitions.Resolver
}

// New creates a Loader. Warnings about a plugin's configuration are recorded in tracker.
func New(installRoot string, host types.HostInfo, tracker *issues.Tracker, resolver *definitions.Resolver) *Loader {
	return &Loader{
		installRoot: installRoot,
		host:        host,
		tracker:     tracker,
		resolver:    resolver,
	}
}

// PluginDir returns the install directory of a plugin.
func (l *Loader) PluginDir(pluginName string) string {
	return PluginDir(l.installRoot, pluginName)
}

// PluginDir returns the install directory of a plugin below installRoot.
// Scoped package names map to nested directories.
func PluginDir(installRoot, pluginName string) string {
	return filepath.Join(installRoot, filepath.FromSlash(pluginName))
}

// Load reads the configuration of an installed plugin.
func (l *Loader) Load(ctx context.Context, pluginName string) (*types.PluginConfigProperties, error) {
	dir := l.PluginDir(pluginName)
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("the install directory %q of plugin %q does not exist", dir, pluginName), err)
	case err != nil:
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("could not access the install directory of plugin %q", pluginName), err)
	case !info.IsDir():
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("the install location %q of plugin %q is not a directory", dir, pluginName), nil)
	}

	props, err := l.LoadDir(ctx, pluginName, dir)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "loaded plugin configuration",
		slog.String("plugin", pluginName), slog.String("package", props.PackageName), slog.String("version", props.Version))
	return props, nil
}

// LoadDir reads the configuration of the plugin package in dir and tracks its
// issues as pluginName.
func (l *Loader) LoadDir(ctx context.Context, pluginName, dir string) (*types.PluginConfigProperties, error) {
	descriptorPath := filepath.Join(dir, DescriptorFile)
	data, err := os.ReadFile(descriptorPath)
	if err != nil {
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("could not read the package descriptor of plugin %q", pluginName), err)
	}
	if !gjson.ValidBytes(data) {
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("the package descriptor %q of plugin %q is not valid JSON", descriptorPath, pluginName), nil)
	}

	key := l.host.ConfigBlockKey()
	block := gjson.GetBytes(data, gjson.Escape(key))
	if !block.Exists() || !block.IsObject() {
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("the package descriptor of plugin %q has no %q configuration block", pluginName, key), nil)
	}
	var cfg types.FrameworkConfig
	if err := json.Unmarshal([]byte(block.Raw), &cfg); err != nil {
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("could not decode the %q configuration block of plugin %q", key, pluginName), err)
	}

	props := &types.PluginConfigProperties{
		PluginName:  pluginName,
		PackageName: gjson.GetBytes(data, "name").String(),
		Version:     gjson.GetBytes(data, "version").String(),
		RootDir:     dir,
		Config:      &cfg,
		CLIDependency: types.Dependency{
			PeerDepName: l.host.PackageName,
			PeerDepVer:  types.NoPeerDependency,
		},
		FrameworkDependency: types.Dependency{
			PeerDepName: l.host.FrameworkPackage,
			PeerDepVer:  types.NoPeerDependency,
		},
	}
	l.readPeerDependencies(ctx, pluginName, data, props)

	if l.host.AddBaseProfile {
		definitions.AddBaseProfile(cfg.Definitions)
	}
	return props, nil
}

func (l *Loader) readPeerDependencies(ctx context.Context, pluginName string, data []byte, props *types.PluginConfigProperties) {
	peers := gjson.GetBytes(data, "peerDependencies")
	if !peers.Exists() || !peers.IsObject() {
		l.warn(ctx, pluginName, fmt.Sprintf(
			"Your package.json has no 'peerDependencies' property. Declare a dependency on %q to state which framework version the plugin supports.",
			l.host.FrameworkPackage))
		return
	}
	// Map instead of a path lookup: scoped package names contain '@' and '/'.
	deps := peers.Map()
	if v, ok := deps[l.host.PackageName]; ok && l.host.PackageName != "" {
		props.CLIDependency.PeerDepVer = v.String()
	}
	if v, ok := deps[l.host.FrameworkPackage]; ok && l.host.FrameworkPackage != "" {
		props.FrameworkDependency.PeerDepVer = v.String()
		return
	}
	l.warn(ctx, pluginName, fmt.Sprintf(
		"Your 'peerDependencies' property does not reference the framework package %q.", l.host.FrameworkPackage))
}

func (l *Loader) warn(ctx context.Context, pluginName, text string) {
	slog.DebugContext(ctx, "plugin configuration warning", slog.String("plugin", pluginName), slog.String("warning", text))
	if l.tracker != nil {
		l.tracker.Record(pluginName, issues.Warning, text)
	}
}

// CommandGroup builds the command group a plugin contributes: its explicit
// definitions plus every definition module matched by its command module
// globs, evaluated in the plugin's root directory.
func (l *Loader) CommandGroup(ctx context.Context, props *types.PluginConfigProperties) (*types.CommandDefinition, error) {
	if props.Config == nil {
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("plugin %q has no configuration", props.PluginName), nil)
	}
	cfg := props.Config
	group := &types.CommandDefinition{
		Name:        props.CommandGroupName(),
		Description: cfg.RootCommandDescription,
		Summary:     cfg.PluginSummary,
		Type:        types.GroupType,
		Aliases:     cfg.PluginAliases,
	}
	if len(cfg.Definitions) == 0 && len(cfg.CommandModuleGlobs) == 0 {
		// A plugin may exist for its overrides only.
		group.Children = []*types.CommandDefinition{}
		return group, nil
	}
	root, err := l.resolver.BuildRootTree(ctx, definitions.TreeSpec{
		RootDescription: cfg.RootCommandDescription,
		DisplayName:     fmt.Sprintf("plugin %q", props.PluginName),
		Definitions:     cfg.Definitions,
		ModuleGlobs:     cfg.CommandModuleGlobs,
		Dir:             props.RootDir,
		AddBaseProfile:  l.host.AddBaseProfile,
	})
	if err != nil {
		return nil, err
	}
	group.Children = root.Children
	return group, nil
}
