// Package modules loads plugin-supplied modules: command definition files,
// lifecycle hooks and override implementations. The engine never loads a path
// directly but always goes through a Loader so that tests and embedding hosts
// can substitute their own.
package modules

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"sigs.k8s.io/yaml"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// ErrModuleNotFound is returned when no file backs a module path.
var ErrModuleNotFound = errors.New("module not found")

// Module is a loaded plugin module. Concrete modules implement further
// interfaces (for example a lifecycle or a definition provider) that consumers
// check for.
type Module interface {
	Path() string
}

// DefinitionProvider is implemented by modules that contribute a command definition.
type DefinitionProvider interface {
	Module
	Definition() (*types.CommandDefinition, error)
}

// Executable is implemented by modules that run as a process.
type Executable interface {
	Module
	Exec(ctx context.Context, stdin []byte, args ...string) ([]byte, error)
}

// Loader resolves and loads modules.
type Loader interface {
	// Resolve returns the file backing the module path or ErrModuleNotFound.
	Resolve(path string) (string, error)
	// Load loads the module at path.
	Load(ctx context.Context, path string) (Module, error)
}

// FileLoader loads modules from the file system.
type FileLoader struct {
	// Extensions are tried in order when path itself does not exist,
	// for example ".json" or ".exe".
	Extensions []string
}

// NewFileLoader creates a FileLoader trying the given extensions.
func NewFileLoader(extensions ...string) *FileLoader {
	return &FileLoader{Extensions: extensions}
}

func (l *FileLoader) Resolve(path string) (string, error) {
	candidates := make([]string, 0, len(l.Extensions)+1)
	candidates = append(candidates, path)
	for _, ext := range l.Extensions {
		candidates = append(candidates, path+ext)
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("could not access module %q: %w", candidate, err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, path)
}

func (l *FileLoader) Load(ctx context.Context, path string) (Module, error) {
	resolved, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "loaded module", slog.String("path", resolved))
	return &FileModule{path: resolved}, nil
}

// NewDefaultLoader creates a FileLoader trying the executable extensions of
// the current platform.
func NewDefaultLoader() *FileLoader {
	if runtime.GOOS == "windows" {
		return NewFileLoader(".exe", ".cmd", ".bat")
	}
	return NewFileLoader()
}

// FileModule is a module backed by a file. Definition files are JSON or YAML
// documents, every other module is an executable.
type FileModule struct {
	path string
}

// NewFileModule creates a FileModule for an existing file.
func NewFileModule(path string) *FileModule {
	return &FileModule{path: path}
}

func (m *FileModule) Path() string {
	return m.path
}

// Definition decodes the file as a command definition.
func (m *FileModule) Definition() (*types.CommandDefinition, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("could not read definition module %q: %w", m.path, err)
	}
	var def types.CommandDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("could not decode definition module %q: %w", m.path, err)
	}
	return &def, nil
}

// Exec runs the module as a process and returns its standard output.
// The process' standard error is returned as part of the error on failure.
func (m *FileModule) Exec(ctx context.Context, stdin []byte, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, filepath.Clean(m.path), args...) //nolint:gosec // G204 module paths are resolved from installed plugins
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("module %s %v failed: %w: %s", m.path, args, err, bytes.TrimSpace(stderr.Bytes()))
		}
		return nil, fmt.Errorf("module %s %v failed: %w", m.path, args, err)
	}
	return stdout.Bytes(), nil
}

// Static is an in-memory loader mapping paths to modules.
type Static map[string]Module

func (s Static) Resolve(path string) (string, error) {
	if _, ok := s[path]; ok {
		return path, nil
	}
	return "", fmt.Errorf("%w: %s", ErrModuleNotFound, path)
}

func (s Static) Load(_ context.Context, path string) (Module, error) {
	if m, ok := s[path]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, path)
}

// Chain tries each loader in order.
type Chain []Loader

func (c Chain) Resolve(path string) (string, error) {
	var errs error
	for _, l := range c {
		resolved, err := l.Resolve(path)
		if err == nil {
			return resolved, nil
		}
		errs = errors.Join(errs, err)
	}
	if errs == nil {
		errs = fmt.Errorf("%w: %s", ErrModuleNotFound, path)
	}
	return "", errs
}

func (c Chain) Load(ctx context.Context, path string) (Module, error) {
	var errs error
	for _, l := range c {
		m, err := l.Load(ctx, path)
		if err == nil {
			return m, nil
		}
		errs = errors.Join(errs, err)
	}
	if errs == nil {
		errs = fmt.Errorf("%w: %s", ErrModuleNotFound, path)
	}
	return nil, errs
}

// DefinitionModule is an in-memory module contributing a command definition.
type DefinitionModule struct {
	ModulePath string
	Def        *types.CommandDefinition
}

func (m *DefinitionModule) Path() string {
	return m.ModulePath
}

func (m *DefinitionModule) Definition() (*types.CommandDefinition, error) {
	if m.Def == nil {
		return nil, fmt.Errorf("module %q has no definition", m.ModulePath)
	}
	return m.Def.Clone(), nil
}

// RuntimePath resolves a module path declared by a plugin against the
// plugin's runtime root unless it is absolute.
func RuntimePath(root, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}
