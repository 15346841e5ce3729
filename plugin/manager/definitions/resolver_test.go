package definitions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"ocm.software/open-component-model/plughost/plugin/manager/issues"
	"ocm.software/open-component-model/plughost/plugin/manager/modules"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type opaqueModule struct{ path string }

func (m opaqueModule) Path() string { return m.path }

func TestBuildRootTreeRequiresCommands(t *testing.T) {
	r := require.New(t)
	resolver := NewResolver(modules.NewFileLoader())

	_, err := resolver.BuildRootTree(t.Context(), TreeSpec{DisplayName: "empty-host"})
	r.ErrorIs(err, types.ErrConfig)
	r.Contains(err.Error(), "empty-host defines no commands")
}

func TestBuildRootTreeCombinesDefinitionsAndGlobs(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib", "cli", "bar", "bar.definition.json"),
		`{"name": "bar", "description": "bar command", "type": "command", "handler": "./lib/bar"}`)
	writeFile(t, filepath.Join(dir, "lib", "cli", "baz", "baz.definition.yaml"),
		"name: baz\ndescription: baz command\ntype: command\nhandler: ./lib/baz\n")
	writeFile(t, filepath.Join(dir, "node_modules", "dep", "lib", "cli", "x", "x.definition.json"),
		`{"name": "ignored"}`)

	foo := &types.CommandDefinition{Name: "foo", Description: "foo command", Type: types.CommandKind, Handler: "./lib/foo"}
	resolver := NewResolver(modules.NewFileLoader())
	tree, err := resolver.BuildRootTree(t.Context(), TreeSpec{
		RootDescription: "sample plugin",
		DisplayName:     "sample-plugin",
		Definitions:     []*types.CommandDefinition{foo},
		ModuleGlobs:     []string{"**/cli/*/*.definition.*"},
		Dir:             dir,
	})
	r.NoError(err)
	r.Equal(types.GroupType, tree.Type)
	r.Equal("sample plugin", tree.Description)
	r.Len(tree.Children, 3)
	r.Same(foo, tree.Children[0], "explicit definitions are used by reference")
	r.Equal("bar", tree.Children[1].Name)
	r.Equal("baz", tree.Children[2].Name)
}

func TestBuildRootTreeGlobWithoutMatchesFails(t *testing.T) {
	r := require.New(t)
	resolver := NewResolver(modules.NewFileLoader())
	_, err := resolver.BuildRootTree(t.Context(), TreeSpec{
		DisplayName: "typo-plugin",
		ModuleGlobs: []string{"lib/**/*.defintion.json"},
		Dir:         t.TempDir(),
	})
	r.ErrorIs(err, types.ErrConfig)
	r.Contains(err.Error(), "matched no files")
}

func TestBuildRootTreeRejectsNonDefinitionModules(t *testing.T) {
	r := require.New(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cmd.json"), "{}")
	loader := modules.Static{filepath.Join(dir, "cmd.json"): modules.NewFileModule(filepath.Join(dir, "cmd.json"))}

	resolver := NewResolver(loader)
	tree, err := resolver.BuildRootTree(t.Context(), TreeSpec{DisplayName: "p", ModuleGlobs: []string{"*.json"}, Dir: dir})
	r.NoError(err, "file modules provide definitions")
	r.Len(tree.Children, 1)

	loader[filepath.Join(dir, "cmd.json")] = opaqueModule{path: filepath.Join(dir, "cmd.json")}
	_, err = resolver.BuildRootTree(t.Context(), TreeSpec{DisplayName: "p", ModuleGlobs: []string{"*.json"}, Dir: dir})
	r.ErrorIs(err, types.ErrConfig)
}

func TestAddBaseProfile(t *testing.T) {
	r := require.New(t)
	withProfile := &types.CommandDefinition{
		Name:    "download",
		Type:    types.CommandKind,
		Profile: &types.ProfileRequirements{Optional: []string{"zosmf"}},
	}
	alreadyBase := &types.CommandDefinition{
		Name:    "upload",
		Type:    types.CommandKind,
		Profile: &types.ProfileRequirements{Required: []string{types.BaseProfileType}},
	}
	noProfile := &types.CommandDefinition{Name: "list", Type: types.CommandKind}
	emptyProfile := &types.CommandDefinition{Name: "show", Type: types.CommandKind, Profile: &types.ProfileRequirements{}}
	group := &types.CommandDefinition{
		Name:     "files",
		Type:     types.GroupType,
		Children: []*types.CommandDefinition{withProfile, alreadyBase, noProfile, emptyProfile},
	}

	AddBaseProfile([]*types.CommandDefinition{group})

	r.Equal([]string{"zosmf", types.BaseProfileType}, withProfile.Profile.Optional)
	r.Empty(alreadyBase.Profile.Optional)
	r.Nil(noProfile.Profile)
	r.Empty(emptyProfile.Profile.Optional)

	AddBaseProfile([]*types.CommandDefinition{group})
	r.Equal([]string{"zosmf", types.BaseProfileType}, withProfile.Profile.Optional, "adding twice is idempotent")
}

func TestBuildRootTreeAddsBaseProfile(t *testing.T) {
	r := require.New(t)
	cmd := &types.CommandDefinition{Name: "c", Type: types.CommandKind, Profile: &types.ProfileRequirements{Optional: []string{"x"}}}
	tree, err := NewResolver(nil).BuildRootTree(t.Context(), TreeSpec{
		DisplayName:    "p",
		Definitions:    []*types.CommandDefinition{cmd},
		AddBaseProfile: true,
	})
	r.NoError(err)
	r.Contains(tree.Children[0].Profile.Optional, types.BaseProfileType)
}

func TestMergeAndRemoveCandidate(t *testing.T) {
	r := require.New(t)
	tracker := issues.NewTracker()
	host := &types.CommandDefinition{Type: types.GroupType, Children: []*types.CommandDefinition{{Name: "plugins"}}}
	candidate := &types.CommandDefinition{Name: "sample-plugin", Type: types.GroupType}

	r.True(MergeCandidate(host, candidate, tracker, "sample-plugin"))
	r.Same(candidate, host.Child("sample-plugin"))
	r.Empty(tracker.List("sample-plugin"))

	duplicate := &types.CommandDefinition{Name: "sample-plugin", Type: types.GroupType}
	r.False(MergeCandidate(host, duplicate, tracker, "sample-plugin"))
	r.True(tracker.HasSeverity("sample-plugin", issues.CommandError))
	r.Len(host.Children, 2)

	RemoveCandidate(host, duplicate)
	r.Len(host.Children, 2, "removing a group that was never merged is a no-op")

	RemoveCandidate(host, candidate)
	r.Nil(host.Child("sample-plugin"))
	RemoveCandidate(host, candidate)
	r.Len(host.Children, 1)
}

func TestMergeCandidateWithoutHostChildren(t *testing.T) {
	r := require.New(t)
	tracker := issues.NewTracker()
	r.False(MergeCandidate(nil, &types.CommandDefinition{Name: "x"}, tracker, "x"))
	r.False(MergeCandidate(&types.CommandDefinition{}, &types.CommandDefinition{Name: "x"}, tracker, "x"))
	r.Len(tracker.List("x"), 2)
}

func TestWalk(t *testing.T) {
	tree := &types.CommandDefinition{Name: "root", Children: []*types.CommandDefinition{
		{Name: "a", Children: []*types.CommandDefinition{{Name: "a1"}}},
		{Name: "b"},
	}}
	var visited []string
	var depths []int
	Walk(tree, func(def *types.CommandDefinition, depth int) {
		visited = append(visited, def.Name)
		depths = append(depths, depth)
	})
	require.Equal(t, []string{"root", "a", "a1", "b"}, visited)
	require.Equal(t, []int{0, 1, 2, 1}, depths)
}
