// Package npmtest provides an in-memory package manager for tests.
package npmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ocm.software/open-component-model/plughost/plugin/npm"
)

// Package is a package the fake can install.
type Package struct {
	Name    string
	Version string
	// Descriptor is merged into the package.json written on install.
	Descriptor map[string]any
	// Files are written below the package directory on install.
	Files map[string]string
}

// Call records one install.
type Call struct {
	Spec   string
	Prefix string
	Info   npm.RegistryInfo
}

// Fake installs packages by writing them into the install root.
type Fake struct {
	mu sync.Mutex
	// InstallRoot is where packages are written, the prefix is ignored.
	InstallRoot      string
	Packages         map[string]Package
	DefaultRegistry  string
	ScopeRegistryMap map[string]string
	InstallErr       error
	UninstallErr     error
	// KeepDirOnUninstall simulates a package manager leaving files behind.
	KeepDirOnUninstall bool

	Installs   []Call
	Uninstalls []string
	Logins     []string
}

var _ npm.PackageManager = (*Fake)(nil)

// New creates a Fake installing into installRoot.
func New(installRoot string, packages ...Package) *Fake {
	f := &Fake{
		InstallRoot:     installRoot,
		Packages:        map[string]Package{},
		DefaultRegistry: "https://registry.npmjs.org/",
	}
	for _, p := range packages {
		f.Add(p.Name, p)
	}
	return f
}

// Add makes p installable under spec.
func (f *Fake) Add(spec string, p Package) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Packages[spec] = p
}

func (f *Fake) Install(_ context.Context, spec, prefix string, info npm.RegistryInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Installs = append(f.Installs, Call{Spec: spec, Prefix: prefix, Info: info})
	if f.InstallErr != nil {
		return f.InstallErr
	}
	p, ok := f.Packages[spec]
	if !ok {
		parsed := npm.ParseSpec(spec)
		if p, ok = f.Packages[parsed.Name]; !ok {
			return fmt.Errorf("package %q not found", spec)
		}
	}
	dir := filepath.Join(f.InstallRoot, filepath.FromSlash(p.Name))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	descriptor := map[string]any{"name": p.Name, "version": p.Version}
	for k, v := range p.Descriptor {
		descriptor[k] = v
	}
	data, err := json.MarshalIndent(descriptor, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "package.json"), data, 0o600); err != nil {
		return err
	}
	for name, content := range p.Files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o700); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fake) Uninstall(_ context.Context, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Uninstalls = append(f.Uninstalls, name)
	if f.UninstallErr != nil {
		return f.UninstallErr
	}
	if f.KeepDirOnUninstall {
		return nil
	}
	return os.RemoveAll(filepath.Join(f.InstallRoot, filepath.FromSlash(name)))
}

func (f *Fake) Registry(context.Context) (string, error) {
	return f.DefaultRegistry, nil
}

func (f *Fake) ScopeRegistry(_ context.Context, scope string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ScopeRegistryMap[scope], nil
}

func (f *Fake) Login(_ context.Context, registry string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Logins = append(f.Logins, registry)
	return nil
}

func (f *Fake) View(_ context.Context, spec string) (npm.PackageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.Packages[spec]
	if !ok {
		return npm.PackageInfo{}, fmt.Errorf("package %q not found", spec)
	}
	return npm.PackageInfo{Name: p.Name, Version: p.Version}, nil
}
