// Package tree connects the cobra command tree of the host CLI with the
// command definitions of plugins.
package tree

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// Environment variables passed to plugin handlers.
const (
	EnvPluginName  = "PLUGHOST_PLUGIN_NAME"
	EnvPluginRoot  = "PLUGHOST_PLUGIN_ROOT"
	EnvCommandPath = "PLUGHOST_COMMAND_PATH"
	EnvHome        = "PLUGHOST_HOME"
)

// Annotation marks cobra commands mounted from a plugin.
const Annotation = "plughost/plugin"

// FromCobra returns the command definition tree of a cobra command. Commands
// with subcommands become groups. Plugin groups mounted earlier are left out.
func FromCobra(cmd *cobra.Command) *types.CommandDefinition {
	def := &types.CommandDefinition{
		Name:        cmd.Name(),
		Description: cmd.Short,
		Aliases:     cmd.Aliases,
		Type:        types.CommandKind,
		Handler:     cmd.CommandPath(),
	}
	if cmd.HasSubCommands() {
		def.Type = types.GroupType
		def.Handler = ""
		def.Children = make([]*types.CommandDefinition, 0, len(cmd.Commands()))
		for _, child := range cmd.Commands() {
			if _, mounted := child.Annotations[Annotation]; mounted {
				continue
			}
			def.Children = append(def.Children, FromCobra(child))
		}
	}
	return def
}

// Plugin identifies the plugin a mounted group belongs to.
type Plugin struct {
	Name    string
	RootDir string
	Home    string
}

// Mount adds group as a subcommand of parent. Commands run their handlers as
// processes; flags are passed through to the handler unparsed.
func Mount(parent *cobra.Command, plugin Plugin, group *types.CommandDefinition) *cobra.Command {
	cmd := newCommand(plugin, group)
	parent.AddCommand(cmd)
	return cmd
}

func newCommand(plugin Plugin, def *types.CommandDefinition) *cobra.Command {
	short := def.Summary
	if short == "" {
		short = def.Description
	}
	cmd := &cobra.Command{
		Use:               def.Name,
		Aliases:           def.Aliases,
		Short:             short,
		Long:              def.Description,
		Annotations:       map[string]string{Annotation: plugin.Name},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	if def.Type == types.GroupType {
		cmd.RunE = func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		}
		for _, child := range def.Children {
			cmd.AddCommand(newCommand(plugin, child))
		}
		return cmd
	}

	cmd.DisableFlagParsing = true
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			if arg == "--help" || arg == "-h" {
				return cmd.Help()
			}
		}
		return Run(cmd.Context(), cmd, plugin, def, HandlerArgs(cmd, args))
	}
	return cmd
}

// HandlerArgs removes the global flags of the host from the unparsed args of
// a plugin command. The host reads them before the command runs. Everything
// after "--" is passed on as is.
func HandlerArgs(cmd *cobra.Command, args []string) []string {
	inherited := cmd.InheritedFlags()
	result := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return append(result, args[i:]...)
		}
		var flag *pflag.Flag
		switch {
		case strings.HasPrefix(arg, "--") && len(arg) > 2:
			name, _, _ := strings.Cut(arg[2:], "=")
			flag = inherited.Lookup(name)
		case strings.HasPrefix(arg, "-") && len(arg) == 2:
			flag = inherited.ShorthandLookup(arg[1:])
		}
		if flag == nil {
			result = append(result, arg)
			continue
		}
		if !strings.Contains(arg, "=") && flag.NoOptDefVal == "" && i+1 < len(args) {
			i++
		}
	}
	return result
}

// Run executes the handlers of a command definition in order. The output of
// silent chained handlers is discarded.
func Run(ctx context.Context, cmd *cobra.Command, plugin Plugin, def *types.CommandDefinition, args []string) error {
	if def.Handler != "" {
		return run(ctx, cmd, plugin, def.Handler, args, cmd.OutOrStdout())
	}
	for i, chained := range def.ChainedHandlers {
		out := cmd.OutOrStdout()
		if chained.Silent {
			out = io.Discard
		}
		if err := run(ctx, cmd, plugin, chained.Handler, args, out); err != nil {
			return fmt.Errorf("chained handler %d of command %q failed: %w", i, cmd.CommandPath(), err)
		}
	}
	return nil
}

func run(ctx context.Context, cmd *cobra.Command, plugin Plugin, handler string, args []string, out io.Writer) error {
	handler = filepath.Clean(handler)
	slog.DebugContext(ctx, "running plugin command handler",
		slog.String("plugin", plugin.Name), slog.String("command", cmd.CommandPath()), slog.String("handler", handler))

	proc := exec.CommandContext(ctx, handler, args...) //nolint:gosec // G204 handlers are validated paths of installed plugins
	proc.Stdin = cmd.InOrStdin()
	proc.Stdout = out
	proc.Stderr = cmd.ErrOrStderr()
	proc.Dir = plugin.RootDir
	proc.Env = append(os.Environ(),
		EnvPluginName+"="+plugin.Name,
		EnvPluginRoot+"="+plugin.RootDir,
		EnvCommandPath+"="+cmd.CommandPath(),
		EnvHome+"="+plugin.Home,
	)
	if err := proc.Run(); err != nil {
		return fmt.Errorf("command %q of plugin %q failed: %w", cmd.CommandPath(), plugin.Name, err)
	}
	return nil
}
