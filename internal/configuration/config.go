// Package configuration loads the host configuration file of the plughost CLI.
package configuration

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

// Configuration file and directory constants
const (
	ConfigDirectoryName   = "plughost"
	ConfigFileName        = ConfigDirectoryName + "/config.yaml"
	NestedConfigFileName  = ".plughostconfig"
	ConfigEnvironmentKey  = "PLUGHOST_CONFIG"
	ConfigCommandArgument = "config"

	HomeEnvironmentKey  = "PLUGHOST_HOME"
	HomeCommandArgument = "home"
	DefaultHomeDir      = "~/.plughost"
)

// Config is the host configuration.
type Config struct {
	// Home is the directory holding plugins, settings and the profile schema.
	Home string `json:"home,omitempty"`
	// Registry is the registry plugins are installed from unless a command
	// names another one.
	Registry string `json:"registry,omitempty"`
	// ProfileSchema maintains the global profile schema on install and uninstall.
	ProfileSchema *bool `json:"profileSchema,omitempty"`
	// ConfigKey is the key of the framework configuration block in plugin descriptors.
	ConfigKey string `json:"configKey,omitempty"`
}

// MaintainsProfileSchema reports whether the global profile schema is kept up to date.
func (c *Config) MaintainsProfileSchema() bool {
	return c == nil || c.ProfileSchema == nil || *c.ProfileSchema
}

// Merge combines configurations. Fields set in earlier configurations win.
func Merge(cfgs ...*Config) *Config {
	merged := &Config{}
	for i := len(cfgs) - 1; i >= 0; i-- {
		cfg := cfgs[i]
		if cfg == nil {
			continue
		}
		if cfg.Home != "" {
			merged.Home = cfg.Home
		}
		if cfg.Registry != "" {
			merged.Registry = cfg.Registry
		}
		if cfg.ProfileSchema != nil {
			merged.ProfileSchema = cfg.ProfileSchema
		}
		if cfg.ConfigKey != "" {
			merged.ConfigKey = cfg.ConfigKey
		}
	}
	return merged
}

func RegisterConfigFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String(ConfigCommandArgument, "", `supply configuration by a given configuration file.
By default (without specifying custom locations with this flag), the file will be read from one of the well known locations:
1. The path specified in the PLUGHOST_CONFIG environment variable
2. The XDG_CONFIG_HOME directory (if set), or the default XDG home ($HOME/.config), or the user's home directory
- $XDG_CONFIG_HOME/plughost/config.yaml
- $XDG_CONFIG_HOME/.plughostconfig
- $HOME/.config/plughost/config.yaml
- $HOME/.config/.plughostconfig
- $HOME/plughost/config.yaml
- $HOME/.plughostconfig
3. The current working directory:
- $PWD/plughost/config.yaml
- $PWD/.plughostconfig
Using the option, this configuration file be used instead of the lookup above.`)
}

func RegisterHomeFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String(HomeCommandArgument, "", fmt.Sprintf(`directory holding installed plugins, settings and the profile schema.
Defaults to $%s, the home of the configuration file, or %s.`, HomeEnvironmentKey, DefaultHomeDir))
}

// GetConfigForCommand returns the configuration named by the config flag of
// cmd or, when the flag is not set, the merged configuration of the well known
// locations.
func GetConfigForCommand(cmd *cobra.Command) (*Config, error) {
	path, _ := cmd.Flags().GetString(ConfigCommandArgument)
	if path != "" {
		return GetConfigFromPath(path)
	}
	return GetConfig()
}

// GetConfig loads every configuration file found in the well known locations
// and merges them in lookup order. Files that fail to load are skipped.
func GetConfig(additional ...string) (*Config, error) {
	paths, err := GetConfigPaths()
	paths = append(paths, additional...)
	if err != nil && len(additional) == 0 {
		return nil, err
	}
	cfgs := make([]*Config, 0, len(paths))
	for _, path := range paths {
		cfg, err := GetConfigFromPath(path)
		if err != nil {
			slog.Error("plughost config path was skipped due to an error loading it",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		slog.Debug("plughost config was loaded successfully", slog.String("path", path))
		cfgs = append(cfgs, cfg)
	}
	return Merge(cfgs...), nil
}

// GetConfigFromPath reads and decodes the YAML configuration file at path.
func GetConfigFromPath(path string) (*Config, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not decode configuration %q: %w", expanded, err)
	}
	return &cfg, nil
}

// GetConfigPaths returns the configuration files found in the well known
// locations, in the following order:
//  1. the PLUGHOST_CONFIG environment variable
//  2. the XDG config home, $HOME/.config or $HOME
//  3. the current working directory
func GetConfigPaths() ([]string, error) {
	var paths []string
	if path := getFromEnvironment(); path != "" {
		paths = append(paths, path)
	}
	if path := getFromXDGOrHomeDir(); path != "" {
		paths = append(paths, path)
	}
	if path := getFromWorkingDir(); path != "" {
		paths = append(paths, path)
	}
	if len(paths) > 0 {
		return paths, nil
	}
	return nil, errors.New("plughost config not found in any known locations")
}

// ResolveHome decides the home directory: the flag value, then the
// PLUGHOST_HOME environment variable, then the configuration, then the default.
func ResolveHome(flag string, cfg *Config) (string, error) {
	home := flag
	if home == "" {
		home = os.Getenv(HomeEnvironmentKey)
	}
	if home == "" && cfg != nil {
		home = cfg.Home
	}
	if home == "" {
		home = DefaultHomeDir
	}
	expanded, err := homedir.Expand(home)
	if err != nil {
		return "", fmt.Errorf("could not expand home directory %q: %w", home, err)
	}
	return filepath.Abs(expanded)
}

func getFromEnvironment() string {
	if env := os.Getenv(ConfigEnvironmentKey); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env
		}
	}
	return ""
}

func getFromXDGOrHomeDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if path := checkConfigPaths(xdg); path != "" {
			return path
		}
	}
	if home, err := homedir.Dir(); err == nil {
		if path := checkConfigPaths(filepath.Join(home, ".config")); path != "" {
			return path
		}
		if path := checkConfigPaths(home); path != "" {
			return path
		}
	}
	return ""
}

func getFromWorkingDir() string {
	if wd, err := os.Getwd(); err == nil {
		return checkConfigPaths(wd)
	}
	return ""
}

func checkConfigPaths(base string) string {
	for _, name := range []string{ConfigFileName, NestedConfigFileName} {
		path := filepath.Join(base, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
