// Package definitions builds and edits command definition trees. It combines
// explicitly declared definitions with definitions discovered through module
// globs and splices plugin command groups into the host's resolved tree.
package definitions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// TreeSpec describes the tree to build.
type TreeSpec struct {
	// RootDescription becomes the description of the root group.
	RootDescription string
	// DisplayName names the owner of the tree in error messages.
	DisplayName string
	// Definitions are explicitly declared children.
	Definitions []*types.CommandDefinition
	// ModuleGlobs select definition modules relative to Dir.
	ModuleGlobs []string
	// Dir is the directory module globs are evaluated in.
	Dir string
	// AddBaseProfile appends the base profile type to every node declaring profiles.
	AddBaseProfile bool
}

// Resolver builds command definition trees.
type Resolver struct {
	loader modules.Loader
}

// NewResolver creates a Resolver loading definition modules through loader.
func NewResolver(loader modules.Loader) *Resolver {
	return &Resolver{loader: loader}
}

// BuildRootTree combines explicit definitions and glob-discovered modules into
// one group. Definitions are used by reference.
func (r *Resolver) BuildRootTree(ctx context.Context, spec TreeSpec) (*types.CommandDefinition, error) {
	if len(spec.Definitions) == 0 && len(spec.ModuleGlobs) == 0 {
		return nil, types.NewError(types.ErrConfig,
			fmt.Sprintf("%s defines no commands: supply 'definitions' and/or 'commandModuleGlobs'", spec.DisplayName), nil)
	}

	children := make([]*types.CommandDefinition, 0, len(spec.Definitions))
	for _, def := range spec.Definitions {
		if def != nil {
			children = append(children, def)
		}
	}

	discovered, err := r.resolveGlobs(ctx, spec)
	if err != nil {
		return nil, err
	}
	children = append(children, discovered...)

	if spec.AddBaseProfile {
		AddBaseProfile(children)
	}

	return &types.CommandDefinition{
		Description: spec.RootDescription,
		Type:        types.GroupType,
		Children:    children,
	}, nil
}

func (r *Resolver) resolveGlobs(ctx context.Context, spec TreeSpec) ([]*types.CommandDefinition, error) {
	var defs []*types.CommandDefinition
	for _, pattern := range spec.ModuleGlobs {
		matches, err := matchGlob(spec.Dir, pattern)
		if err != nil {
			return nil, types.NewError(types.ErrConfig,
				fmt.Sprintf("could not evaluate command module glob %q of %s", pattern, spec.DisplayName), err)
		}
		if len(matches) == 0 {
			return nil, types.NewError(types.ErrConfig,
				fmt.Sprintf("command module glob %q of %s matched no files in %s", pattern, spec.DisplayName, spec.Dir), nil)
		}
		for _, match := range matches {
			def, err := r.loadDefinition(ctx, match)
			if err != nil {
				return nil, types.NewError(types.ErrConfig,
					fmt.Sprintf("could not load command module %q of %s", match, spec.DisplayName), err)
			}
			slog.DebugContext(ctx, "loaded command module", slog.String("owner", spec.DisplayName), slog.String("path", match))
			defs = append(defs, def)
		}
	}
	return defs, nil
}

func (r *Resolver) loadDefinition(ctx context.Context, path string) (*types.CommandDefinition, error) {
	if r.loader == nil {
		return nil, errors.New("no module loader configured")
	}
	m, err := r.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	provider, ok := m.(modules.DefinitionProvider)
	if !ok {
		return nil, fmt.Errorf("module %q does not provide a command definition", m.Path())
	}
	return provider.Definition()
}

// matchGlob returns the files below dir whose slash-separated relative path
// matches pattern. node_modules directories are never searched.
func matchGlob(dir, pattern string) ([]string, error) {
	g, err := glob.Compile(strings.TrimPrefix(filepath.ToSlash(pattern), "./"), '/')
	if err != nil {
		return nil, err
	}
	var matches []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if g.Match(filepath.ToSlash(rel)) {
			matches = append(matches, path)
		}
		return nil
	})
	return matches, err
}

// AddBaseProfile appends the base profile type as optional profile to every
// node (recursively) that declares profiles.
func AddBaseProfile(defs []*types.CommandDefinition) {
	for _, root := range defs {
		Walk(root, func(def *types.CommandDefinition, _ int) {
			if !def.Profile.IsEmpty() &&
				!slices.Contains(def.Profile.Optional, types.BaseProfileType) &&
				!slices.Contains(def.Profile.Required, types.BaseProfileType) {
				def.Profile.Optional = append(def.Profile.Optional, types.BaseProfileType)
			}
		})
	}
}

// MergeCandidate appends a plugin's command group to the host tree. It refuses
// (and records a command error) when the host tree is unusable or a child with
// the same name already exists.
func MergeCandidate(host, candidate *types.CommandDefinition, tracker *issues.Tracker, plugin string) bool {
	if host == nil || host.Children == nil {
		tracker.Record(plugin, issues.CommandError,
			"The host command tree has no children: the plugin's commands cannot be added.")
		return false
	}
	if candidate == nil {
		tracker.Record(plugin, issues.CommandError, "The plugin has no command group to add.")
		return false
	}
	if existing := host.Child(candidate.Name); existing != nil {
		tracker.Record(plugin, issues.CommandError,
			fmt.Sprintf("The command group %q is already part of the host command tree.", candidate.Name))
		return false
	}
	host.Children = append(host.Children, candidate)
	return true
}

// RemoveCandidate removes a previously merged command group from the host tree.
// Removing a group that is not present is a no-op.
func RemoveCandidate(host, candidate *types.CommandDefinition) {
	if host == nil || candidate == nil {
		return
	}
	host.Children = slices.DeleteFunc(host.Children, func(child *types.CommandDefinition) bool {
		return child == candidate
	})
}

// Walk calls fn for every node of the tree in depth-first order with the
// node's depth (the root has depth 0).
func Walk(root *types.CommandDefinition, fn func(def *types.CommandDefinition, depth int)) {
	var walk func(def *types.CommandDefinition, depth int)
	walk = func(def *types.CommandDefinition, depth int) {
		if def == nil {
			return
		}
		fn(def, depth)
		for _, child := range def.Children {
			walk(child, depth+1)
		}
	}
	walk(root, 0)
}
