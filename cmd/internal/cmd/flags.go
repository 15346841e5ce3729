package cmd

const (
	// RegistryFlag names the registry to install plugins from.
	RegistryFlag = "registry"
	// LoginFlag logs in to the registry before installing.
	LoginFlag = "login"
	// FileFlag names a plugin manifest file to install plugins from.
	FileFlag = "file"
	// OutputFlag selects the output format of listing commands.
	OutputFlag = "output"
	// ShortFlag prints plugin names only.
	ShortFlag = "short"
	// FailOnErrorFlag fails validation when a plugin has errors.
	FailOnErrorFlag = "fail-on-error"
	// FailOnWarningFlag fails validation when a plugin has warnings.
	FailOnWarningFlag = "fail-on-warning"
	// NPMBinaryFlag names the npm executable used to install plugins.
	NPMBinaryFlag = "npm-binary"
)
