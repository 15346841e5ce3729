package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"ocm.software/open-component-model/plughost/internal/flags/enum"
)

const (
	FlagFormat          = "format"
	FlagFormatShortHand = "f"
	FormatText          = "text"
	FormatJSON          = "json"
)

// BuildVersion is set at build time with
//
//	-ldflags "-X ocm.software/open-component-model/plughost/cmd/version.BuildVersion=1.2.3"
//
// and overrides the module version from the Go build information.
var BuildVersion = "n/a"

// FallbackVersion is reported when neither a build version nor a module
// version is available, for example in development builds.
const FallbackVersion = "0.0.0-dev"

// Info is the version information of the CLI.
type Info struct {
	Major      string `json:"major"`
	Minor      string `json:"minor"`
	Patch      string `json:"patch"`
	PreRelease string `json:"prerelease,omitempty"`
	Meta       string `json:"meta,omitempty"`
	Version    string `json:"version"`
	GoVersion  string `json:"goVersion"`
	Platform   string `json:"platform"`
}

// Get returns the semantic version of the CLI. It is the version plugins
// compare their peer dependency on the host against.
func Get() string {
	candidate := BuildVersion
	if candidate == "n/a" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			candidate = bi.Main.Version
		}
	}
	v, err := semver.NewVersion(candidate)
	if err != nil {
		return FallbackVersion
	}
	return v.String()
}

// GetInfo splits a version into its components.
func GetInfo(version string) (Info, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return Info{}, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return Info{
		Major:      strconv.FormatUint(v.Major(), 10),
		Minor:      strconv.FormatUint(v.Minor(), 10),
		Patch:      strconv.FormatUint(v.Patch(), 10),
		PreRelease: v.Prerelease(),
		Meta:       v.Metadata(),
		Version:    v.String(),
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}, nil
}

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Retrieve the build version of the plughost CLI",
		Long: `The version command prints the semantic version of the plughost CLI.
Plugins declaring a peer dependency on the CLI are checked against this version.`,
		Example: fmt.Sprintf(`plughost version --%s %s`, FlagFormat, FormatJSON),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := enum.Get(cmd.Flags(), FlagFormat)
			if err != nil {
				return err
			}
			info, err := GetInfo(Get())
			if err != nil {
				return err
			}
			if format == FormatJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(info)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.Version)
			return err
		},
		DisableAutoGenTag: true,
		SilenceUsage:      true,
	}
	enum.VarP(cmd.Flags(), FlagFormat, FlagFormatShortHand, []string{FormatText, FormatJSON}, "format of the version output")
	return cmd
}
