// Package profiles keeps the profile types known to the host: its own and
// those contributed by admitted plugins.
package profiles

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

// HostOwner owns the profile types declared by the host.
const HostOwner = ""

// Entry is a registered profile type.
type Entry struct {
	Owner  string
	Config types.ProfileTypeConfiguration
	schema *jsonschema.Schema
}

// Registry holds registered profile types in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register compiles the schemas of profiles and registers them for owner.
// Either all profiles are registered or none.
func (r *Registry) Register(owner string, profiles []types.ProfileTypeConfiguration) error {
	compiled := make([]*Entry, 0, len(profiles))
	for _, p := range profiles {
		sch, err := compile(p)
		if err != nil {
			return err
		}
		compiled = append(compiled, &Entry{Owner: owner, Config: p, schema: sch})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range compiled {
		if existing := r.find(e.Config.Type); existing != nil || slices.ContainsFunc(compiled, func(o *Entry) bool {
			return o != e && o.Config.Type == e.Config.Type
		}) {
			return fmt.Errorf("profile type %q is already registered", e.Config.Type)
		}
	}
	r.entries = append(r.entries, compiled...)
	return nil
}

// Unregister removes every profile type of owner.
func (r *Registry) Unregister(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = slices.DeleteFunc(r.entries, func(e *Entry) bool { return e.Owner == owner })
}

// Types returns the registered profile types in registration order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Config.Type)
	}
	return out
}

// TypesExcept returns the registered profile types not owned by owner.
func (r *Registry) TypesExcept(owner string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, e := range r.entries {
		if e.Owner != owner {
			out = append(out, e.Config.Type)
		}
	}
	return out
}

// Get returns the registered profile type.
func (r *Registry) Get(typ string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e := r.find(typ); e != nil {
		return *e, true
	}
	return Entry{}, false
}

// Validate checks profile values against the schema of their type.
func (r *Registry) Validate(typ string, values map[string]any) error {
	e, ok := r.Get(typ)
	if !ok {
		return fmt.Errorf("unknown profile type %q", typ)
	}
	content, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("failed to unmarshal profile: %w", err)
	}
	if err := e.schema.Validate(instance); err != nil {
		return fmt.Errorf("profile of type %q is invalid: %w", typ, err)
	}
	return nil
}

func (r *Registry) find(typ string) *Entry {
	for _, e := range r.entries {
		if e.Config.Type == typ {
			return e
		}
	}
	return nil
}

func compile(p types.ProfileTypeConfiguration) (*jsonschema.Schema, error) {
	content, err := json.Marshal(p.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema of profile type %q: %w", p.Type, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema of profile type %q: %w", p.Type, err)
	}
	url := p.Type + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema of profile type %q: %w", p.Type, err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema of profile type %q: %w", p.Type, err)
	}
	return sch, nil
}
