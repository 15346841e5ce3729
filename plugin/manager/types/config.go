package types

// NoPeerDependency is the version range recorded when a plugin does not declare
// a peer dependency on a package.
const NoPeerDependency = "-1"

// FrameworkConfig is the configuration block a plugin declares in its package
// descriptor. It is read-only once loaded.
type FrameworkConfig struct {
	// Name overrides the package name as name of the plugin's command group.
	Name                   string               `json:"name,omitempty"`
	RootCommandDescription string               `json:"rootCommandDescription,omitempty"`
	ProductDisplayName     string               `json:"productDisplayName,omitempty"`
	Definitions            []*CommandDefinition `json:"definitions,omitempty"`
	CommandModuleGlobs     []string             `json:"commandModuleGlobs,omitempty"`
	// Profiles distinguishes between nil (not declared) and an empty list.
	Profiles []ProfileTypeConfiguration `json:"profiles,omitempty"`
	// Overrides maps a setting name such as CredentialManager to the module
	// implementing the override.
	Overrides map[string]string `json:"overrides,omitempty"`
	// PluginLifeCycle is the module implementing the post-install and
	// pre-uninstall hooks.
	PluginLifeCycle string   `json:"pluginLifeCycle,omitempty"`
	PluginAliases   []string `json:"pluginAliases,omitempty"`
	PluginSummary   string   `json:"pluginSummary,omitempty"`
	// BaseProfile lets a host declare the shared profile type.
	BaseProfile *ProfileTypeConfiguration `json:"baseProfile,omitempty"`
}

// ProfileTypeConfiguration declares a profile type and the JSON schema of its properties.
type ProfileTypeConfiguration struct {
	Type   string        `json:"type" jsonschema:"required,minLength=1"`
	Schema ProfileSchema `json:"schema"`
}

// ProfileSchema is the JSON schema of a profile type. Version is optional and
// used to decide which contributor's schema wins when several plugins extend
// the same type.
type ProfileSchema struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type,omitempty"`
	Version     string         `json:"version,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Required    []string       `json:"required,omitempty"`
}

// Dependency is a peer dependency declared by a plugin.
type Dependency struct {
	PeerDepName string `json:"peerDepName"`
	PeerDepVer  string `json:"peerDepVer"`
}

// Declared reports whether the plugin declared a version range for the dependency.
func (d Dependency) Declared() bool {
	return d.PeerDepVer != "" && d.PeerDepVer != NoPeerDependency
}

// PluginConfigProperties is produced each time a plugin's package descriptor
// is read. It is never persisted.
type PluginConfigProperties struct {
	// PluginName is the name the plugin is installed and tracked under.
	PluginName string `json:"pluginName"`
	// PackageName is the name from the package descriptor.
	PackageName string `json:"npmPackageName"`
	// Version is the installed version from the package descriptor.
	Version string `json:"version,omitempty"`
	// RootDir is the plugin's runtime root: module paths are relative to it.
	RootDir             string           `json:"rootDir"`
	Config              *FrameworkConfig `json:"impConfig"`
	CLIDependency       Dependency       `json:"cliDependency"`
	FrameworkDependency Dependency       `json:"impDependency"`
}

// CommandGroupName returns the name of the plugin's command group: the
// configured name or, when absent, the package name.
func (p *PluginConfigProperties) CommandGroupName() string {
	if p.Config != nil && p.Config.Name != "" {
		return p.Config.Name
	}
	return p.PackageName
}

// DefaultConfigKey is the key of the framework configuration block in a
// package descriptor when the host does not choose its own.
const DefaultConfigKey = "plughost"

// HostInfo identifies the host CLI a plugin is loaded into.
type HostInfo struct {
	// PackageName is the name of the host CLI package. A setting equal to it
	// selects the built-in implementation of an overridable component.
	PackageName string
	// Version is the installed version of the host CLI.
	Version string
	// FrameworkPackage is the package name of the framework plugins depend on.
	FrameworkPackage string
	// FrameworkVersion is the installed framework version.
	FrameworkVersion string
	// ConfigKey is the key of the framework configuration block in a package descriptor.
	ConfigKey string
	// AddBaseProfile appends the base profile type to every command declaring profiles.
	AddBaseProfile bool
}

// ConfigBlockKey returns the key of the framework configuration block.
func (h HostInfo) ConfigBlockKey() string {
	if h.ConfigKey != "" {
		return h.ConfigKey
	}
	return DefaultConfigKey
}
