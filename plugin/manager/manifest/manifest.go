// Package manifest persists the list of installed plugins. The manifest file is
// the single source of truth for what is installed and keeps plugins in install
// order, which is also the order in which they are loaded.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// FileName is the default name of the manifest file.
const FileName = "plugins.json"

// Entry describes one installed plugin.
type Entry struct {
	// Package is the package spec the plugin was installed from.
	Package string `json:"package" validate:"required"`
	// Location is the registry URL, local path or URL the package came from.
	Location string `json:"location" validate:"required"`
	// Version is the installed version.
	Version string `json:"version" validate:"required"`
}

// Entries maps plugin names to entries in insertion order.
type Entries = orderedmap.OrderedMap[string, Entry]

// NewEntries creates an empty Entries map.
func NewEntries() *Entries {
	return orderedmap.New[string, Entry]()
}

// Names returns the plugin names in order.
func Names(entries *Entries) []string {
	names := make([]string, 0, entries.Len())
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Store reads and writes the manifest file.
// The store does not lock the file: a single host process is assumed.
type Store struct {
	path     string
	validate *validator.Validate
}

// NewStore creates a Store for the manifest at path.
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Path returns the location of the manifest file.
func (s *Store) Path() string {
	return s.path
}

// Ensure creates an empty manifest if none exists yet.
func (s *Store) Ensure(ctx context.Context) error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return types.NewError(types.ErrIO, fmt.Sprintf("could not access plugin manifest %q", s.path), err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.NewError(types.ErrIO, fmt.Sprintf("could not create directory for plugin manifest %q", s.path), err)
	}
	slog.DebugContext(ctx, "creating empty plugin manifest", slog.String("path", s.path))
	return s.WriteAll(ctx, NewEntries())
}

// ReadAll reads every entry of the manifest. A manifest that exists but
// cannot be parsed is an error and never treated as empty.
func (s *Store) ReadAll(ctx context.Context) (*Entries, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not read plugin manifest %q", s.path), err)
	}
	entries := NewEntries()
	if err := json.Unmarshal(data, entries); err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not parse plugin manifest %q", s.path), err)
	}
	slog.DebugContext(ctx, "read plugin manifest", slog.String("path", s.path), slog.Int("plugins", entries.Len()))
	return entries, nil
}

// Check validates a single entry before it is recorded.
func (s *Store) Check(name string, entry Entry) error {
	if err := s.validate.Struct(entry); err != nil {
		return types.NewError(types.ErrIO, fmt.Sprintf("invalid manifest entry for plugin %q", name), err)
	}
	return nil
}

// Put checks entry and records it under name, keeping the other entries as
// they are stored.
func (s *Store) Put(ctx context.Context, name string, entry Entry) error {
	if err := s.Check(name, entry); err != nil {
		return err
	}
	entries, err := s.ReadAll(ctx)
	if err != nil {
		return err
	}
	entries.Set(name, entry)
	return s.WriteAll(ctx, entries)
}

// WriteAll replaces the manifest with the given entries. Entries are written
// as they are; new entries go through Put.
func (s *Store) WriteAll(ctx context.Context, entries *Entries) error {
	if entries == nil {
		entries = NewEntries()
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return types.NewError(types.ErrIO, "could not encode plugin manifest", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return types.NewError(types.ErrIO, fmt.Sprintf("could not write plugin manifest %q", s.path), err)
	}
	slog.DebugContext(ctx, "wrote plugin manifest", slog.String("path", s.path), slog.Int("plugins", entries.Len()))
	return nil
}

// Get returns the entry of a single plugin.
func (s *Store) Get(ctx context.Context, name string) (Entry, bool, error) {
	entries, err := s.ReadAll(ctx)
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := entries.Get(name)
	return entry, ok, nil
}
