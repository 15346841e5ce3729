package types

import (
	"path/filepath"
	"runtime"
)

// Layout locates the files of the plugin management engine below the host's
// home directory.
type Layout struct {
	Home string
	// GOOS selects the package manager's directory layout. Defaults to runtime.GOOS.
	GOOS string
}

// PluginsDir contains the manifest and the installed plugins.
func (l Layout) PluginsDir() string {
	return filepath.Join(l.Home, "plugins")
}

// ManifestPath is the location of the manifest.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.PluginsDir(), "plugins.json")
}

// InstallPrefix is the prefix passed to the package manager.
func (l Layout) InstallPrefix() string {
	return filepath.Join(l.PluginsDir(), "installed")
}

// InstallRoot is the directory global packages are installed into below the prefix.
func (l Layout) InstallRoot() string {
	goos := l.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if goos == "windows" {
		return filepath.Join(l.InstallPrefix(), "node_modules")
	}
	return filepath.Join(l.InstallPrefix(), "lib", "node_modules")
}

// SchemaPath is the location of the global profile schema.
func (l Layout) SchemaPath() string {
	return filepath.Join(l.Home, "schema.json")
}

// ExtendersPath is the location of the extenders registry.
func (l Layout) ExtendersPath() string {
	return filepath.Join(l.Home, "extenders.json")
}
