package types

// CommandType distinguishes groups from executable commands.
type CommandType string

const (
	GroupType   CommandType = "group"
	CommandKind CommandType = "command"
)

// BaseProfileType is the profile type every plugin may share without declaring it.
const BaseProfileType = "base"

// CommandDefinition is a node of the command tree. Groups carry children,
// commands carry a handler or a list of chained handlers.
//
// Children and ChainedHandlers distinguish between nil (property absent) and
// an empty slice (property present without entries).
type CommandDefinition struct {
	Name            string               `json:"name,omitempty"`
	Description     string               `json:"description,omitempty"`
	Summary         string               `json:"summary,omitempty"`
	Type            CommandType          `json:"type,omitempty" jsonschema:"enum=group,enum=command"`
	Aliases         []string             `json:"aliases,omitempty"`
	Handler         string               `json:"handler,omitempty"`
	ChainedHandlers []ChainedHandler     `json:"chainedHandlers,omitempty"`
	Children        []*CommandDefinition `json:"children,omitempty"`
	Options         []CommandOption      `json:"options,omitempty"`
	Profile         *ProfileRequirements `json:"profile,omitempty"`
}

// ChainedHandler is one step of a command that is implemented by several handlers.
type ChainedHandler struct {
	Handler string `json:"handler,omitempty"`
	// Silent suppresses the output of this step.
	Silent bool `json:"silent,omitempty"`
}

// CommandOption describes an option of a command. It is consumed by the command
// framework and only carried through by the engine.
type CommandOption struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Type         string   `json:"type,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	Required     bool     `json:"required,omitempty"`
	DefaultValue any      `json:"defaultValue,omitempty"`
}

// ProfileRequirements lists the profile types a command can be used with.
type ProfileRequirements struct {
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`
}

// IsEmpty reports whether no profile type is referenced.
func (p *ProfileRequirements) IsEmpty() bool {
	return p == nil || (len(p.Required) == 0 && len(p.Optional) == 0)
}

// Clone returns a deep copy of the definition tree.
func (d *CommandDefinition) Clone() *CommandDefinition {
	if d == nil {
		return nil
	}
	c := *d
	c.Aliases = cloneNonNil(d.Aliases)
	c.ChainedHandlers = cloneNonNil(d.ChainedHandlers)
	c.Options = cloneNonNil(d.Options)
	if d.Profile != nil {
		c.Profile = &ProfileRequirements{
			Required: cloneNonNil(d.Profile.Required),
			Optional: cloneNonNil(d.Profile.Optional),
		}
	}
	if d.Children != nil {
		c.Children = make([]*CommandDefinition, 0, len(d.Children))
		for _, child := range d.Children {
			c.Children = append(c.Children, child.Clone())
		}
	}
	return &c
}

// Child returns the direct child with the given name.
func (d *CommandDefinition) Child(name string) *CommandDefinition {
	if d == nil {
		return nil
	}
	for _, child := range d.Children {
		if child != nil && child.Name == name {
			return child
		}
	}
	return nil
}

// cloneNonNil keeps the nil/empty distinction that slices.Clone drops for empty slices.
func cloneNonNil[S ~[]E, E any](s S) S {
	if s == nil {
		return nil
	}
	return append(make(S, 0, len(s)), s...)
}
