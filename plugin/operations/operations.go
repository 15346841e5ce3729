// Package operations installs, updates and uninstalls plugins. Every
// operation runs the package manager synchronously and keeps the manifest,
// the global profile schema and the plugin's lifecycle hooks in step with it.
// A failed step aborts the operation; steps already taken are not rolled back.
package operations

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/lifecycle"
	"ocm.software/open-component-model/plughost/plugin/manager/loader"
	"ocm.software/open-component-model/plughost/plugin/manager/manifest"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/plugin/npm"
	"ocm.software/open-component-model/plughost/profile/schema"
)

// ErrNotInstalled is returned for operations on plugins missing from the manifest.
var ErrNotInstalled = errors.New("plugin is not installed")

// Operations changes the set of installed plugins.
type Operations struct {
	layout    types.Layout
	pm        npm.PackageManager
	manifest  *manifest.Store
	configs   *loader.Loader
	lifecycle *lifecycle.Runner
	// schema is only maintained when the host uses project configuration.
	schema *schema.Store
}

// Option configures Operations.
type Option func(*Operations)

// WithSchema maintains the global profile schema on install and uninstall.
func WithSchema(s *schema.Store) Option {
	return func(o *Operations) {
		o.schema = s
	}
}

// New creates Operations for the plugins managed by m.
func New(m *manager.PluginManager, pm npm.PackageManager, opts ...Option) *Operations {
	o := &Operations{
		layout:    m.Layout,
		pm:        pm,
		manifest:  m.Manifest,
		configs:   m.Configs,
		lifecycle: lifecycle.NewRunner(m.Modules, m.Configs, m.Settings, m.Catalog),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Installed describes the outcome of an install or update.
type Installed struct {
	Name  string
	Entry manifest.Entry
}

// Install installs a plugin from a package spec and records it in the
// manifest. userRegistry overrides the configured registry when set.
func (o *Operations) Install(ctx context.Context, rawSpec, userRegistry string) (Installed, error) {
	return o.install(ctx, rawSpec, userRegistry, "")
}

func (o *Operations) install(ctx context.Context, rawSpec, userRegistry, cachedLocation string) (Installed, error) {
	if err := o.manifest.Ensure(ctx); err != nil {
		return Installed{}, err
	}
	spec := npm.ParseSpec(rawSpec)
	packageSpec := rawSpec
	if spec.IsLocal() {
		packageSpec = spec.Path
	}

	info, err := npm.BuildRegistryInfo(ctx, o.pm, npm.RegistryRequest{
		Spec:           spec,
		UserRegistry:   userRegistry,
		CachedLocation: cachedLocation,
	})
	if err != nil {
		return Installed{}, fail(types.ErrExternalTool, "determine the registry of", rawSpec, err)
	}

	slog.InfoContext(ctx, "installing plugin", slog.String("package", packageSpec), slog.String("location", info.Location))
	if err := o.pm.Install(ctx, packageSpec, o.layout.InstallPrefix(), info); err != nil {
		return Installed{}, fail(types.ErrExternalTool, "install", rawSpec, err)
	}

	pkg, err := npm.Describe(ctx, o.pm, spec)
	if err != nil {
		return Installed{}, fail(types.ErrIO, "determine the package name of", rawSpec, err)
	}
	version, err := npm.InstalledVersion(o.configs.PluginDir(pkg.Name))
	if err != nil {
		return Installed{}, fail(types.ErrIO, "determine the installed version of", pkg.Name, err)
	}

	entry := manifest.Entry{Package: packageSpec, Location: info.Location, Version: version}
	if err := o.manifest.Check(pkg.Name, entry); err != nil {
		return Installed{}, err
	}

	props, err := o.configs.Load(ctx, pkg.Name)
	if err != nil {
		return Installed{}, fail(types.ErrConfig, "load the configuration of", pkg.Name, err)
	}
	if err := o.lifecycle.PostInstall(ctx, props); err != nil {
		return Installed{}, err
	}
	if err := o.addProfileTypes(ctx, props); err != nil {
		return Installed{}, err
	}
	if err := o.manifest.Put(ctx, pkg.Name, entry); err != nil {
		return Installed{}, err
	}
	slog.InfoContext(ctx, "installed plugin", slog.String("plugin", pkg.Name), slog.String("version", version))
	return Installed{Name: pkg.Name, Entry: entry}, nil
}

// InstallFromFile installs the plugins listed in a manifest file, or only
// the listed packages of it. Every plugin is attempted; the errors are joined.
func (o *Operations) InstallFromFile(ctx context.Context, path string, packages []string, userRegistry string) ([]Installed, error) {
	entries, err := manifest.NewStore(path).ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var installed []Installed
	var errs []error
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		if len(packages) > 0 && !slices.Contains(packages, pair.Key) {
			continue
		}
		result, err := o.install(ctx, pair.Value.Package, userRegistry, pair.Value.Location)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		installed = append(installed, result)
	}
	for _, p := range packages {
		if _, ok := entries.Get(p); !ok {
			errs = append(errs, fail(types.ErrConfig, "find", p, fmt.Errorf("not listed in %q", path)))
		}
	}
	return installed, errors.Join(errs...)
}

// Update reinstalls an installed plugin from its recorded package spec,
// merges its current profile types and records the new version. Lifecycle
// hooks are not run.
func (o *Operations) Update(ctx context.Context, name, userRegistry string) (Installed, error) {
	entries, err := o.manifest.ReadAll(ctx)
	if err != nil {
		return Installed{}, err
	}
	entry, ok := entries.Get(name)
	if !ok {
		return Installed{}, fail(types.ErrConfig, "update", name, ErrNotInstalled)
	}

	spec := npm.ParseSpec(entry.Package)
	info, err := npm.BuildRegistryInfo(ctx, o.pm, npm.RegistryRequest{
		Spec:           spec,
		UserRegistry:   userRegistry,
		CachedLocation: entry.Location,
	})
	if err != nil {
		return Installed{}, fail(types.ErrExternalTool, "determine the registry of", name, err)
	}

	slog.InfoContext(ctx, "updating plugin", slog.String("plugin", name), slog.String("location", info.Location))
	if err := o.pm.Install(ctx, entry.Package, o.layout.InstallPrefix(), info); err != nil {
		return Installed{}, fail(types.ErrExternalTool, "update", name, err)
	}
	version, err := npm.InstalledVersion(o.configs.PluginDir(name))
	if err != nil {
		return Installed{}, fail(types.ErrIO, "determine the installed version of", name, err)
	}

	entry.Location = info.Location
	entry.Version = version
	if err := o.manifest.Check(name, entry); err != nil {
		return Installed{}, err
	}

	props, err := o.configs.Load(ctx, name)
	if err != nil {
		return Installed{}, fail(types.ErrConfig, "load the configuration of", name, err)
	}
	if err := o.addProfileTypes(ctx, props); err != nil {
		return Installed{}, err
	}
	if err := o.manifest.Put(ctx, name, entry); err != nil {
		return Installed{}, err
	}
	slog.InfoContext(ctx, "updated plugin", slog.String("plugin", name), slog.String("version", version))
	return Installed{Name: name, Entry: entry}, nil
}

// Uninstall runs the plugin's pre-uninstall hook, removes its package,
// prunes its profile types and drops it from the manifest.
func (o *Operations) Uninstall(ctx context.Context, name string) error {
	entries, err := o.manifest.ReadAll(ctx)
	if err != nil {
		return err
	}
	if _, ok := entries.Get(name); !ok {
		return fail(types.ErrConfig, "uninstall", name, ErrNotInstalled)
	}

	if err := o.lifecycle.PreUninstall(ctx, name); err != nil {
		return err
	}

	slog.InfoContext(ctx, "uninstalling plugin", slog.String("plugin", name))
	if err := o.pm.Uninstall(ctx, name, o.layout.InstallPrefix()); err != nil {
		return fail(types.ErrExternalTool, "uninstall", name, err)
	}
	dir := o.configs.PluginDir(name)
	if _, err := os.Stat(dir); err == nil {
		return types.NewError(types.ErrIO,
			fmt.Sprintf("failed to uninstall plugin %q: the install directory %q still exists", name, dir), nil)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fail(types.ErrIO, "verify the removal of", name, err)
	}

	if o.schema != nil {
		if err := o.schema.RemoveContributor(ctx, name); err != nil {
			return fail(types.ErrIO, "remove the profile types of", name, err)
		}
	}

	entries, err = o.manifest.ReadAll(ctx)
	if err != nil {
		return err
	}
	entries.Delete(name)
	if err := o.manifest.WriteAll(ctx, entries); err != nil {
		return err
	}
	slog.InfoContext(ctx, "uninstalled plugin", slog.String("plugin", name))
	return nil
}

// Login authenticates against a registry before installing from it.
func (o *Operations) Login(ctx context.Context, registry string) error {
	if err := o.pm.Login(ctx, registry); err != nil {
		return fail(types.ErrExternalTool, "log in for", registry, err)
	}
	return nil
}

// addProfileTypes merges the plugin's profile types into the global schema.
func (o *Operations) addProfileTypes(ctx context.Context, props *types.PluginConfigProperties) error {
	if o.schema == nil || props.Config == nil {
		return nil
	}
	if err := o.schema.AddProfileTypes(ctx, props.PluginName, props.Config.Profiles); err != nil {
		return fail(types.ErrIO, "add the profile types of", props.PluginName, err)
	}
	return nil
}

func fail(kind error, action, subject string, cause error) error {
	return types.NewError(kind, fmt.Sprintf("failed to %s plugin %q", action, subject), cause)
}
