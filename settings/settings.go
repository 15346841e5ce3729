// Package settings persists the user's choices between built-in and plugin
// supplied implementations of overridable framework components.
package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

const (
	// Dir is the directory below the host home containing the settings file.
	Dir = "settings"
	// FileName is the name of the settings file.
	FileName = "settings.yaml"
)

// CredentialManager is the setting selecting the credential manager.
const CredentialManager = "CredentialManager"

// Override is the value of an override setting. The zero value selects the
// built-in implementation and is persisted as false.
type Override string

// Builtin selects the built-in implementation.
const Builtin Override = ""

// IsBuiltin reports whether the built-in implementation is selected.
func (o Override) IsBuiltin() bool {
	return o == Builtin
}

func (o Override) MarshalJSON() ([]byte, error) {
	if o.IsBuiltin() {
		return []byte("false"), nil
	}
	return json.Marshal(string(o))
}

func (o *Override) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) || bytes.Equal(data, []byte("false")) {
		*o = Builtin
		return nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("an override must be false or the name of a plugin: %s", data)
	}
	// YAML booleans reach a string target as strings
	switch name {
	case "false":
		*o = Builtin
		return nil
	case "true":
		return fmt.Errorf("an override must be false or the name of a plugin: %s", data)
	}
	*o = Override(name)
	return nil
}

// Settings is a snapshot of the settings file.
type Settings struct {
	Overrides map[string]Override `json:"overrides"`
}

// Default returns the settings used when no settings file exists.
func Default() *Settings {
	return &Settings{Overrides: map[string]Override{CredentialManager: Builtin}}
}

// Override returns the value of an override setting.
func (s *Settings) Override(setting string) Override {
	if s == nil {
		return Builtin
	}
	return s.Overrides[setting]
}

// SetOverride sets the value of an override setting.
func (s *Settings) SetOverride(setting string, value Override) {
	if s.Overrides == nil {
		s.Overrides = map[string]Override{}
	}
	s.Overrides[setting] = value
}

// Clone returns an independent copy of the settings.
func (s *Settings) Clone() *Settings {
	return &Settings{Overrides: maps.Clone(s.Overrides)}
}

// Store reads and writes the settings file.
type Store struct {
	path string
}

// NewStore creates a Store for the settings file below home.
func NewStore(home string) *Store {
	return &Store{path: filepath.Join(home, Dir, FileName)}
}

// Path returns the location of the settings file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings. A missing file yields the default settings.
func (s *Store) Load(ctx context.Context) (*Settings, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.DebugContext(ctx, "no settings file found, using defaults", slog.String("path", s.path))
		return Default(), nil
	}
	if err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not read settings file %q", s.path), err)
	}
	settings := Default()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not parse settings file %q", s.path), err)
	}
	if settings.Overrides == nil {
		settings.Overrides = Default().Overrides
	}
	return settings, nil
}

// Save writes the settings.
func (s *Store) Save(ctx context.Context, settings *Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return types.NewError(types.ErrIO, "could not encode settings", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.NewError(types.ErrIO, fmt.Sprintf("could not create settings directory for %q", s.path), err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return types.NewError(types.ErrIO, fmt.Sprintf("could not write settings file %q", s.path), err)
	}
	slog.DebugContext(ctx, "saved settings", slog.String("path", s.path))
	return nil
}

// Update loads the settings, applies fn and saves the result.
func (s *Store) Update(ctx context.Context, fn func(*Settings)) error {
	settings, err := s.Load(ctx)
	if err != nil {
		return err
	}
	fn(settings)
	return s.Save(ctx, settings)
}
