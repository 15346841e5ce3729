// Package npm is the boundary to the package manager installing plugins.
package npm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// PackageManager installs and removes packages.
type PackageManager interface {
	// Install installs spec globally below prefix.
	Install(ctx context.Context, spec, prefix string, info RegistryInfo) error
	// Uninstall removes the package name from prefix.
	Uninstall(ctx context.Context, name, prefix string) error
	// Registry returns the configured default registry.
	Registry(ctx context.Context) (string, error)
	// ScopeRegistry returns the registry configured for a scope or the empty string.
	ScopeRegistry(ctx context.Context, scope string) (string, error)
	// Login authenticates against a registry.
	Login(ctx context.Context, registry string) error
	// View fetches name and version of a package that is not installed yet.
	View(ctx context.Context, spec string) (PackageInfo, error)
}

// PackageInfo identifies a package.
type PackageInfo struct {
	Name    string
	Version string
}

// NPM runs the npm binary.
type NPM struct {
	// Binary is the npm executable. Defaults to "npm".
	Binary string
	// LogLevel is passed to installs when set, together with --foreground-scripts.
	LogLevel string
	// Stdin, Stdout and Stderr are attached to interactive commands.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

var _ PackageManager = (*NPM)(nil)

// New creates an NPM using the npm binary on the path.
func New() *NPM {
	return &NPM{Binary: "npm", Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// InstallArgs returns the arguments of an install invocation.
func (n *NPM) InstallArgs(spec, prefix string, info RegistryInfo) []string {
	args := []string{"install", spec, "-g", "--legacy-peer-deps"}
	if n.LogLevel != "" {
		args = append(args, "--loglevel="+n.LogLevel, "--foreground-scripts")
	}
	args = append(args, "--prefix", prefix)
	if info.Registry != "" {
		args = append(args, "--registry", info.Registry)
	}
	for _, scope := range info.ScopeNames() {
		args = append(args, "--"+scope+":registry", info.ScopeRegistries[scope])
	}
	return args
}

func (n *NPM) Install(ctx context.Context, spec, prefix string, info RegistryInfo) error {
	out, err := n.run(ctx, n.InstallArgs(spec, prefix, info)...)
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "installed package", slog.String("spec", spec), slog.String("output", out))
	return nil
}

func (n *NPM) Uninstall(ctx context.Context, name, prefix string) error {
	out, err := n.run(ctx, "uninstall", name, "--prefix", prefix, "-g")
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "uninstalled package", slog.String("package", name), slog.String("output", out))
	return nil
}

func (n *NPM) Registry(ctx context.Context) (string, error) {
	out, err := n.run(ctx, "config", "get", "registry")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (n *NPM) ScopeRegistry(ctx context.Context, scope string) (string, error) {
	out, err := n.run(ctx, "config", "get", scope+":registry")
	if err != nil {
		return "", err
	}
	registry := strings.TrimSpace(out)
	if registry == "undefined" || registry == "null" {
		return "", nil
	}
	return registry, nil
}

func (n *NPM) Login(ctx context.Context, registry string) error {
	cmd := exec.CommandContext(ctx, n.binary(), "login", "--registry", registry, "--always-auth", "--auth-type=legacy") //nolint:gosec // G204 arguments are not shell interpreted
	cmd.Stdin = n.Stdin
	cmd.Stdout = n.Stdout
	cmd.Stderr = n.Stderr
	if err := cmd.Run(); err != nil {
		return types.NewError(types.ErrExternalTool, fmt.Sprintf("login to registry %q failed", registry), err)
	}
	return nil
}

func (n *NPM) View(ctx context.Context, spec string) (PackageInfo, error) {
	out, err := n.run(ctx, "view", spec, "name", "version", "--json")
	if err != nil {
		return PackageInfo{}, err
	}
	result := gjson.Parse(out)
	if result.IsArray() {
		// several versions matched: the last one is installed
		versions := result.Array()
		if len(versions) == 0 {
			return PackageInfo{}, types.NewError(types.ErrExternalTool, fmt.Sprintf("no package matches %q", spec), nil)
		}
		result = versions[len(versions)-1]
	}
	info := PackageInfo{Name: result.Get("name").String(), Version: result.Get("version").String()}
	if info.Name == "" {
		return PackageInfo{}, types.NewError(types.ErrExternalTool, fmt.Sprintf("could not determine the package name of %q", spec), nil).
			WithDetails(out)
	}
	return info, nil
}

func (n *NPM) binary() string {
	if n.Binary == "" {
		return "npm"
	}
	return n.Binary
}

func (n *NPM) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, n.binary(), args...) //nolint:gosec // G204 arguments are not shell interpreted
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	slog.DebugContext(ctx, "running package manager", slog.String("binary", n.binary()), slog.Any("args", args))
	if err := cmd.Run(); err != nil {
		details := strings.TrimSpace(stderr.String())
		if details == "" {
			details = strings.TrimSpace(stdout.String())
		}
		return "", types.NewError(types.ErrExternalTool,
			fmt.Sprintf("command '%s %s' failed", n.binary(), strings.Join(args, " ")), err).WithDetails(details)
	}
	return stdout.String(), nil
}
