// Package validation decides whether a plugin is admitted into the host CLI.
// Every check records its findings in the issue tracker; a plugin is admitted
// when no configuration or command error was recorded.
package validation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// Target is a plugin about to be added to the host tree.
type Target struct {
	Props *types.PluginConfigProperties
	// Group is the plugin's command group. It is never modified.
	Group *types.CommandDefinition
	// HostTree is the host's resolved command tree.
	HostTree *types.CommandDefinition
	// HostProfileTypes are the profile types already known to the host.
	HostProfileTypes []string
}

// Validator runs the admission checks.
type Validator struct {
	host    types.HostInfo
	tracker *issues.Tracker
	loader  modules.Loader
	config  ConfigurationValidator
}

// New creates a Validator. Handler paths are resolved through loader and the
// configuration block is finally checked by config.
func New(host types.HostInfo, tracker *issues.Tracker, loader modules.Loader, config ConfigurationValidator) *Validator {
	return &Validator{
		host:    host,
		tracker: tracker,
		loader:  loader,
		config:  config,
	}
}

// Validate checks the target and returns a copy of its command group in which
// every handler path is absolute. The returned tree is only meaningful when
// the plugin is admitted.
func (v *Validator) Validate(ctx context.Context, target Target) (*types.CommandDefinition, bool) {
	props := target.Props
	plugin := props.PluginName
	cfg := props.Config
	if cfg == nil {
		cfg = &types.FrameworkConfig{}
	}
	validated := target.Group.Clone()
	if validated == nil {
		validated = &types.CommandDefinition{Name: props.CommandGroupName(), Type: types.GroupType}
	}

	v.checkName(plugin, props)
	v.checkConflicts(plugin, validated, target.HostTree)
	if cfg.RootCommandDescription == "" {
		v.record(plugin, issues.CommandError, fmt.Sprintf(
			"The plugin's configuration does not contain a '%s.rootCommandDescription' property.", v.host.ConfigBlockKey()))
	}
	v.checkPeerDependency(plugin, props.CLIDependency, v.host.Version)
	v.checkPeerDependency(plugin, props.FrameworkDependency, v.host.FrameworkVersion)

	if len(validated.Children) == 0 && len(cfg.Overrides) == 0 {
		v.record(plugin, issues.ConfigError,
			"The plugin defines no commands and overrides no framework components.")
	} else {
		for _, child := range validated.Children {
			v.checkDefinition(ctx, plugin, props.RootDir, child, 1)
		}
	}

	if cfg.Profiles != nil {
		v.checkProfiles(plugin, cfg.Profiles, target.HostProfileTypes)
	}
	v.checkConfiguration(plugin, cfg)

	admitted := v.tracker.Admissible(plugin)
	slog.DebugContext(ctx, "validated plugin", slog.String("plugin", plugin), slog.Bool("admitted", admitted))
	return validated, admitted
}

func (v *Validator) record(plugin string, severity issues.Severity, text string) {
	v.tracker.Record(plugin, severity, text)
}

func (v *Validator) checkName(plugin string, props *types.PluginConfigProperties) {
	if props.CommandGroupName() != "" {
		return
	}
	v.record(plugin, issues.ConfigError, fmt.Sprintf(
		"The plugin's configuration does not contain a '%s.name' property, or an npm package 'name' property in package.json.",
		v.host.ConfigBlockKey()))
}

// checkConflicts reports the first top-level host command whose name or
// aliases match the plugin's group name or aliases.
func (v *Validator) checkConflicts(plugin string, group, host *types.CommandDefinition) {
	if host == nil {
		return
	}
	candidates := nonEmpty(append([]string{group.Name}, group.Aliases...))
	for _, existing := range host.Children {
		if existing == nil {
			continue
		}
		names := nonEmpty(append([]string{existing.Name}, existing.Aliases...))
		for _, c := range candidates {
			for _, n := range names {
				if strings.EqualFold(c, n) {
					v.record(plugin, issues.CommandError, fmt.Sprintf(
						"The plugin's command name or alias '%s' conflicts with the name or alias '%s' of the existing command group '%s'.",
						c, n, existing.Name))
					return
				}
			}
		}
	}
}

func nonEmpty(names []string) []string {
	out := names[:0]
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (v *Validator) checkPeerDependency(plugin string, dep types.Dependency, actual string) {
	if !dep.Declared() || actual == "" {
		return
	}
	constraint, err := semver.NewConstraint(dep.PeerDepVer)
	if err != nil {
		v.record(plugin, issues.Warning, fmt.Sprintf(
			"Failed to compare the version value %q of dependency %q with the installed version %q: %v",
			dep.PeerDepVer, dep.PeerDepName, actual, err))
		return
	}
	version, err := semver.NewVersion(actual)
	if err != nil {
		v.record(plugin, issues.Warning, fmt.Sprintf(
			"Failed to compare the version value %q of dependency %q with the installed version %q: %v",
			dep.PeerDepVer, dep.PeerDepName, actual, err))
		return
	}
	if !constraint.Check(version) {
		v.record(plugin, issues.Warning, fmt.Sprintf(
			"The version range %q of dependency %q does not match the installed version %q.",
			dep.PeerDepVer, dep.PeerDepName, actual))
	}
}

// checkDefinition validates def and its children and rewrites handler paths
// of the (already copied) tree to absolute paths.
func (v *Validator) checkDefinition(ctx context.Context, plugin, root string, def *types.CommandDefinition, depth int) {
	if def == nil {
		v.record(plugin, issues.CommandError, fmt.Sprintf("The command definition at depth %d is empty.", depth))
		return
	}
	name := def.Name
	if name == "" {
		name = fmt.Sprintf("<command at depth %d>", depth)
		v.record(plugin, issues.CommandError, fmt.Sprintf(
			"The command definition at depth %d has no 'name' property.", depth))
	}
	if def.Description == "" {
		v.record(plugin, issues.CommandError, fmt.Sprintf(
			"Name = '%s' has no 'description' property.", name))
	}

	switch def.Type {
	case "":
		v.record(plugin, issues.CommandError, fmt.Sprintf("Name = '%s' has no 'type' property.", name))
	case types.CommandKind:
		v.checkHandlers(ctx, plugin, root, name, def)
	case types.GroupType:
		if def.Children == nil {
			v.record(plugin, issues.CommandError, fmt.Sprintf(
				"Group name = '%s' has no 'children' property.", name))
			return
		}
		if len(def.Children) == 0 {
			v.record(plugin, issues.CommandError, fmt.Sprintf(
				"Group name = '%s' has a 'children' property with no children.", name))
			return
		}
		for _, child := range def.Children {
			v.checkDefinition(ctx, plugin, root, child, depth+1)
		}
	}
}

func (v *Validator) checkHandlers(ctx context.Context, plugin, root, name string, def *types.CommandDefinition) {
	if def.Handler != "" {
		if resolved, ok := v.resolveHandler(ctx, plugin, root, name, def.Handler); ok {
			def.Handler = resolved
		}
		return
	}
	if def.ChainedHandlers == nil {
		v.record(plugin, issues.CommandError, fmt.Sprintf(
			"Command name = '%s' has no 'handler' property and no 'chainedHandlers' property.", name))
		return
	}
	if len(def.ChainedHandlers) == 0 {
		v.record(plugin, issues.CommandError, fmt.Sprintf(
			"Command name = '%s' has a 'chainedHandlers' property with no handlers.", name))
		return
	}
	for i := range def.ChainedHandlers {
		step := &def.ChainedHandlers[i]
		if step.Handler == "" {
			v.record(plugin, issues.CommandError, fmt.Sprintf(
				"Chained handler %d of command name = '%s' has no 'handler' property.", i, name))
			continue
		}
		if resolved, ok := v.resolveHandler(ctx, plugin, root, name, step.Handler); ok {
			step.Handler = resolved
		}
	}
}

func (v *Validator) resolveHandler(ctx context.Context, plugin, root, name, handler string) (string, bool) {
	path := modules.RuntimePath(root, handler)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if v.loader == nil {
		v.record(plugin, issues.CommandError, fmt.Sprintf(
			"The handler for command name = '%s' cannot be resolved: no module loader is configured.", name))
		return "", false
	}
	resolved, err := v.loader.Resolve(path)
	if err != nil {
		slog.DebugContext(ctx, "handler not found", slog.String("plugin", plugin), slog.String("path", path), slog.String("error", err.Error()))
		v.record(plugin, issues.CommandError, fmt.Sprintf(
			"The handler for command name = '%s' does not exist: %s", name, path))
		return "", false
	}
	return resolved, true
}

func (v *Validator) checkProfiles(plugin string, profiles []types.ProfileTypeConfiguration, hostTypes []string) {
	if len(profiles) == 0 {
		v.record(plugin, issues.CommandError,
			"The plugin's 'profiles' property is an empty array. Remove it or declare at least one profile type.")
		return
	}
	for i := range profiles {
		for j := i + 1; j < len(profiles); j++ {
			if profiles[i].Type == profiles[j].Type {
				v.record(plugin, issues.CommandError, fmt.Sprintf(
					"The plugin's profiles at indexes = %d and %d have the same 'type' property = '%s'.",
					i, j, profiles[i].Type))
			}
		}
	}
	for _, existing := range hostTypes {
		for _, p := range profiles {
			if p.Type == existing {
				v.record(plugin, issues.CommandError, fmt.Sprintf(
					"The plugin's profile type = '%s' already exists within existing profiles.", p.Type))
			}
		}
	}
}

func (v *Validator) checkConfiguration(plugin string, cfg *types.FrameworkConfig) {
	if v.config == nil {
		return
	}
	if err := safeValidate(v.config, cfg); err != nil {
		v.record(plugin, issues.ConfigError, fmt.Sprintf(
			"The plugin's configuration is invalid: %v", err))
	}
}

func safeValidate(validator ConfigurationValidator, cfg *types.FrameworkConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("configuration validation panicked: %v", r)
		}
	}()
	return validator.Validate(cfg)
}
