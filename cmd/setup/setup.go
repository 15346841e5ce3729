// Package setup creates the shared structures of the CLI and stores them in
// the command context.
package setup

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	plugcmd "ocm.software/open-component-model/plughost/cmd/internal/cmd"
	"ocm.software/open-component-model/plughost/cmd/internal/tree"
	"ocm.software/open-component-model/plughost/cmd/version"
	"ocm.software/open-component-model/plughost/internal/configuration"
	plugctx "ocm.software/open-component-model/plughost/internal/context"
	"ocm.software/open-component-model/plughost/internal/credentials"
	"ocm.software/open-component-model/plughost/internal/flags/log"
	"ocm.software/open-component-model/plughost/plugin/manager"
	"ocm.software/open-component-model/plughost/plugin/manager/types"
	"ocm.software/open-component-model/plughost/plugin/npm"
	"ocm.software/open-component-model/plughost/plugin/operations"
	"ocm.software/open-component-model/plughost/profile/schema"
	"ocm.software/open-component-model/plughost/settings"
)

const (
	// PackageName is the package name of the host CLI. Selecting it for an
	// override setting selects the built-in implementation.
	PackageName = "@plughost/cli"
	// FrameworkPackage is the package plugins declare a peer dependency on.
	FrameworkPackage = "@plughost/framework"
	// FrameworkVersion is the version of the plugin framework this CLI provides.
	FrameworkVersion = "1.0.0"
)

// Option adjusts the structures created for a command.
type Option func(*Builder)

// Builder accumulates options.
type Builder struct {
	ManagerOptions []manager.OptionFn
	PackageManager npm.PackageManager
}

// Apply collects opts.
func Apply(opts ...Option) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithManagerOptions passes options to the plugin manager.
func WithManagerOptions(opts ...manager.OptionFn) Option {
	return func(b *Builder) {
		b.ManagerOptions = append(b.ManagerOptions, opts...)
	}
}

// WithPackageManager replaces npm as package manager.
func WithPackageManager(pm npm.PackageManager) Option {
	return func(b *Builder) {
		b.PackageManager = pm
	}
}

// HostInfo describes this CLI to the plugin manager.
func HostInfo(cfg *configuration.Config) types.HostInfo {
	host := types.HostInfo{
		PackageName:      PackageName,
		Version:          version.Get(),
		FrameworkPackage: FrameworkPackage,
		FrameworkVersion: FrameworkVersion,
	}
	if cfg != nil {
		host.ConfigKey = cfg.ConfigKey
	}
	return host
}

// Config loads the host configuration into the command context. Without a
// configuration file the defaults apply.
func Config(cmd *cobra.Command) {
	if plugctx.FromContext(cmd.Context()).Configuration() != nil {
		return
	}
	cfg, err := configuration.GetConfigForCommand(cmd)
	if err != nil {
		slog.DebugContext(cmd.Context(), "could not get configuration", slog.String("error", err.Error()))
		cfg = &configuration.Config{}
	}
	cmd.SetContext(plugctx.WithConfiguration(cmd.Context(), cfg))
}

// Layout returns the file layout below the home directory chosen by flag,
// environment or configuration.
func Layout(cmd *cobra.Command) (types.Layout, error) {
	flag, _ := cmd.Flags().GetString(configuration.HomeCommandArgument)
	home, err := configuration.ResolveHome(flag, plugctx.FromContext(cmd.Context()).Configuration())
	if err != nil {
		return types.Layout{}, err
	}
	return types.Layout{Home: home}, nil
}

// PluginManager creates the plugin manager and the manifest if needed.
func PluginManager(cmd *cobra.Command, opts ...manager.OptionFn) error {
	if plugctx.FromContext(cmd.Context()).PluginManager() != nil {
		return nil
	}
	layout, err := Layout(cmd)
	if err != nil {
		return fmt.Errorf("could not determine the home directory: %w", err)
	}
	cfg := plugctx.FromContext(cmd.Context()).Configuration()
	pm, err := manager.NewPluginManager(HostInfo(cfg), layout, opts...)
	if err != nil {
		return fmt.Errorf("could not create plugin manager: %w", err)
	}
	if err := pm.Init(cmd.Context()); err != nil {
		return fmt.Errorf("could not initialize plugin manager: %w", err)
	}
	slog.DebugContext(cmd.Context(), "plugin manager initialized", slog.String("home", layout.Home))
	cmd.SetContext(plugctx.WithPluginManager(cmd.Context(), pm))
	return nil
}

// Operations creates the package operations on top of the plugin manager.
// A nil package manager selects npm.
func Operations(cmd *cobra.Command, pm npm.PackageManager) error {
	c := plugctx.FromContext(cmd.Context())
	if c.Operations() != nil {
		return nil
	}
	pluginManager := c.PluginManager()
	if pluginManager == nil {
		return fmt.Errorf("could not get plugin manager to initialize package operations")
	}
	if pm == nil {
		n := npm.New()
		if binary, err := cmd.Flags().GetString(plugcmd.NPMBinaryFlag); err == nil && binary != "" {
			n.Binary = binary
		}
		n.Stdin, n.Stdout, n.Stderr = cmd.InOrStdin(), cmd.ErrOrStderr(), cmd.ErrOrStderr()
		pm = n
	}
	var opts []operations.Option
	if c.Configuration().MaintainsProfileSchema() {
		opts = append(opts, operations.WithSchema(schema.NewStoreForLayout(pluginManager.Layout)))
	}
	cmd.SetContext(plugctx.WithOperations(cmd.Context(), operations.New(pluginManager, pm, opts...)))
	return nil
}

// Plugins loads the installed plugins into the command tree of root once and
// mounts the admitted command groups below root. It returns the host tree the
// plugins were loaded into.
func Plugins(cmd *cobra.Command, root *cobra.Command) (*types.CommandDefinition, error) {
	c := plugctx.FromContext(cmd.Context())
	if hostTree := c.HostTree(); hostTree != nil {
		return hostTree, nil
	}
	pm := c.PluginManager()
	if pm == nil {
		return nil, fmt.Errorf("could not get plugin manager to load plugins")
	}
	hostTree := tree.FromCobra(root)
	if err := pm.LoadAll(cmd.Context(), hostTree); err != nil {
		return nil, fmt.Errorf("could not load plugins: %w", err)
	}
	roots := map[string]string{}
	for _, props := range pm.Loaded() {
		roots[props.PluginName] = props.RootDir
	}
	for _, name := range pm.Admitted() {
		group, ok := pm.Group(name)
		if !ok {
			continue
		}
		tree.Mount(root, tree.Plugin{Name: name, RootDir: roots[name], Home: pm.Layout.Home}, group)
		slog.DebugContext(cmd.Context(), "mounted plugin commands", slog.String("plugin", name), slog.String("group", group.Name))
	}
	cmd.SetContext(plugctx.WithHostTree(cmd.Context(), hostTree))
	return hostTree, nil
}

// Credentials selects the credential manager: the override resolved for the
// loaded plugins or the built-in file manager.
func Credentials(cmd *cobra.Command) {
	c := plugctx.FromContext(cmd.Context())
	pm := c.PluginManager()
	if pm == nil {
		return
	}
	builtin := credentials.NewFileManager(filepath.Join(pm.Layout.Home, settings.Dir, credentials.FileName))
	cmd.SetContext(plugctx.WithCredentials(cmd.Context(), credentials.Resolve(pm.Overrides(), builtin)))
}

// Bootstrap loads the installed plugins and mounts their commands below root
// before root parses its arguments. Only the global flags are read from args;
// every other argument is left to cobra. The returned context carries the
// structures created on the way and must be used to execute root. Failures
// are logged: the built-in commands stay usable without plugins.
func Bootstrap(ctx context.Context, root *cobra.Command, args []string, opts ...Option) context.Context {
	b := Apply(opts...)
	boot := &cobra.Command{
		Use:                root.Use,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	}
	boot.PersistentFlags().AddFlagSet(root.PersistentFlags())
	boot.SetOut(root.OutOrStdout())
	boot.SetErr(root.ErrOrStderr())
	boot.SetContext(ctx)
	if err := boot.ParseFlags(args); err != nil {
		slog.DebugContext(ctx, "could not parse global flags", slog.String("error", err.Error()))
	}
	if logger, err := log.GetBaseLogger(boot); err == nil {
		slog.SetDefault(logger)
	}

	Config(boot)
	if err := PluginManager(boot, b.ManagerOptions...); err != nil {
		slog.WarnContext(boot.Context(), "plugins are not available", slog.String("error", err.Error()))
		return boot.Context()
	}
	root.InitDefaultHelpCmd()
	if _, err := Plugins(boot, root); err != nil {
		slog.WarnContext(boot.Context(), "plugins are not available", slog.String("error", err.Error()))
	}
	return boot.Context()
}
