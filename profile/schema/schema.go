// Package schema maintains the global profile schema and the extenders
// registry recording which plugin packages contributed which profile types.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

const typeEnumPath = "properties.profiles.additionalProperties.properties.type.enum"

// Extender records the contributors of a profile type.
type Extender struct {
	From []string `json:"from"`
	// Version is the schema version currently in the global schema.
	Version string `json:"version,omitempty"`
	// LatestFrom is the package that contributed the current schema version.
	LatestFrom string `json:"latestFrom,omitempty"`
}

// Extenders is the content of the extenders registry.
type Extenders struct {
	ProfileTypes map[string]*Extender `json:"profileTypes"`
}

// Store edits the global schema and the extenders registry.
// Like the manifest, the files are not locked.
type Store struct {
	schemaPath    string
	extendersPath string
}

// NewStore creates a Store for the given files.
func NewStore(schemaPath, extendersPath string) *Store {
	return &Store{schemaPath: schemaPath, extendersPath: extendersPath}
}

// NewStoreForLayout creates a Store for the files of layout.
func NewStoreForLayout(layout types.Layout) *Store {
	return NewStore(layout.SchemaPath(), layout.ExtendersPath())
}

// ReadExtenders reads the extenders registry. A missing file is empty.
func (s *Store) ReadExtenders(ctx context.Context) (*Extenders, error) {
	ext := &Extenders{ProfileTypes: map[string]*Extender{}}
	data, err := os.ReadFile(s.extendersPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.DebugContext(ctx, "no extenders registry found", slog.String("path", s.extendersPath))
		return ext, nil
	}
	if err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not read extenders registry %q", s.extendersPath), err)
	}
	if err := json.Unmarshal(data, ext); err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not parse extenders registry %q", s.extendersPath), err)
	}
	if ext.ProfileTypes == nil {
		ext.ProfileTypes = map[string]*Extender{}
	}
	return ext, nil
}

// ProfileTypes returns the profile types in the global schema.
func (s *Store) ProfileTypes(ctx context.Context) ([]string, error) {
	doc, err := s.readSchema(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, v := range gjson.GetBytes(doc, typeEnumPath).Array() {
		out = append(out, v.String())
	}
	return out, nil
}

// Definition returns the schema of a profile type from the global schema.
func (s *Store) Definition(ctx context.Context, typ string) (json.RawMessage, bool, error) {
	doc, err := s.readSchema(ctx)
	if err != nil {
		return nil, false, err
	}
	def := gjson.GetBytes(doc, defPath(typ))
	if !def.Exists() {
		return nil, false, nil
	}
	return json.RawMessage(def.Raw), true, nil
}

// AddProfileTypes merges the profile types of pkg. A type already in the
// schema is only replaced by a newer schema version.
func (s *Store) AddProfileTypes(ctx context.Context, pkg string, profiles []types.ProfileTypeConfiguration) error {
	if len(profiles) == 0 {
		return nil
	}
	ext, err := s.ReadExtenders(ctx)
	if err != nil {
		return err
	}
	doc, err := s.readSchema(ctx)
	if err != nil {
		return err
	}

	for _, p := range profiles {
		existing, ok := ext.ProfileTypes[p.Type]
		if !ok {
			ext.ProfileTypes[p.Type] = &Extender{From: []string{pkg}, Version: p.Schema.Version, LatestFrom: latestFrom(pkg, p.Schema.Version)}
			if doc, err = setDefinition(doc, p); err != nil {
				return err
			}
			continue
		}
		if !slices.Contains(existing.From, pkg) {
			existing.From = append(existing.From, pkg)
		}
		replace, err := newer(p.Schema.Version, existing.Version)
		if err != nil {
			slog.WarnContext(ctx, "could not compare profile schema versions, keeping the current schema",
				slog.String("type", p.Type), slog.String("package", pkg), slog.String("error", err.Error()))
			continue
		}
		if !replace {
			if p.Schema.Version != "" && p.Schema.Version != existing.Version {
				slog.WarnContext(ctx, "profile schema is older than the installed one, keeping the current schema",
					slog.String("type", p.Type), slog.String("package", pkg),
					slog.String("version", p.Schema.Version), slog.String("current", existing.Version))
			}
			continue
		}
		existing.Version = p.Schema.Version
		existing.LatestFrom = pkg
		if doc, err = setDefinition(doc, p); err != nil {
			return err
		}
	}
	return s.write(ctx, doc, ext)
}

// RemoveContributor removes pkg from every profile type. Types without any
// remaining contributor are deleted from the schema and the registry.
func (s *Store) RemoveContributor(ctx context.Context, pkg string) error {
	ext, err := s.ReadExtenders(ctx)
	if err != nil {
		return err
	}
	doc, err := s.readSchema(ctx)
	if err != nil {
		return err
	}
	changed := false
	for typ, e := range ext.ProfileTypes {
		if !slices.Contains(e.From, pkg) {
			continue
		}
		changed = true
		e.From = slices.DeleteFunc(e.From, func(f string) bool { return f == pkg })
		if len(e.From) > 0 {
			if e.LatestFrom == pkg {
				e.LatestFrom = ""
				e.Version = ""
			}
			continue
		}
		delete(ext.ProfileTypes, typ)
		if doc, err = deleteDefinition(doc, typ); err != nil {
			return err
		}
		slog.DebugContext(ctx, "removed profile type from global schema", slog.String("type", typ), slog.String("package", pkg))
	}
	if !changed {
		return nil
	}
	return s.write(ctx, doc, ext)
}

func latestFrom(pkg, version string) string {
	if version == "" {
		return ""
	}
	return pkg
}

// newer reports whether candidate replaces current. Unversioned schemas never
// replace a present schema.
func newer(candidate, current string) (bool, error) {
	if candidate == "" {
		return false, nil
	}
	if current == "" {
		return true, nil
	}
	c, err := semver.NewVersion(candidate)
	if err != nil {
		return false, err
	}
	cur, err := semver.NewVersion(current)
	if err != nil {
		return false, err
	}
	return c.GreaterThan(cur), nil
}

func (s *Store) readSchema(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.schemaPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.DebugContext(ctx, "no global schema found, starting empty", slog.String("path", s.schemaPath))
		return emptySchema(), nil
	}
	if err != nil {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("could not read global schema %q", s.schemaPath), err)
	}
	if !gjson.ValidBytes(data) {
		return nil, types.NewError(types.ErrIO, fmt.Sprintf("global schema %q is not valid JSON", s.schemaPath), nil)
	}
	return data, nil
}

func emptySchema() []byte {
	return []byte(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "profiles": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "type": {"enum": []},
          "properties": {"type": "object"}
        }
      }
    }
  },
  "$defs": {}
}`)
}

func setDefinition(doc []byte, p types.ProfileTypeConfiguration) ([]byte, error) {
	def, err := json.Marshal(p.Schema)
	if err != nil {
		return nil, fmt.Errorf("could not encode schema of profile type %q: %w", p.Type, err)
	}
	doc, err = sjson.SetRawBytes(doc, defPath(p.Type), def)
	if err != nil {
		return nil, fmt.Errorf("could not add profile type %q to global schema: %w", p.Type, err)
	}
	names := typeNames(doc)
	if !slices.Contains(names, p.Type) {
		names = append(names, p.Type)
	}
	return setTypeNames(doc, names)
}

func deleteDefinition(doc []byte, typ string) ([]byte, error) {
	doc, err := sjson.DeleteBytes(doc, defPath(typ))
	if err != nil {
		return nil, fmt.Errorf("could not remove profile type %q from global schema: %w", typ, err)
	}
	return setTypeNames(doc, slices.DeleteFunc(typeNames(doc), func(n string) bool { return n == typ }))
}

func typeNames(doc []byte) []string {
	var names []string
	for _, v := range gjson.GetBytes(doc, typeEnumPath).Array() {
		names = append(names, v.String())
	}
	return names
}

func setTypeNames(doc []byte, names []string) ([]byte, error) {
	if names == nil {
		names = []string{}
	}
	doc, err := sjson.SetBytes(doc, typeEnumPath, names)
	if err != nil {
		return nil, fmt.Errorf("could not update profile types of global schema: %w", err)
	}
	return doc, nil
}

func defPath(typ string) string {
	return "$defs." + gjson.Escape(typ)
}

func (s *Store) write(ctx context.Context, doc []byte, ext *Extenders) error {
	var indented bytes.Buffer
	if err := json.Indent(&indented, doc, "", "  "); err != nil {
		return types.NewError(types.ErrIO, "could not format global schema", err)
	}
	extData, err := json.MarshalIndent(ext, "", "  ")
	if err != nil {
		return types.NewError(types.ErrIO, "could not encode extenders registry", err)
	}
	for path, data := range map[string][]byte{
		s.schemaPath:    append(indented.Bytes(), '\n'),
		s.extendersPath: append(extData, '\n'),
	} {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return types.NewError(types.ErrIO, fmt.Sprintf("could not create directory for %q", path), err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return types.NewError(types.ErrIO, fmt.Sprintf("could not write %q", path), err)
		}
	}
	slog.DebugContext(ctx, "updated global schema", slog.String("schema", s.schemaPath), slog.String("extenders", s.extendersPath))
	return nil
}
