package npm

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

// Kind classifies a package spec.
type Kind int

const (
	// KindRegistry is a package name, optionally with a version, range or tag.
	KindRegistry Kind = iota
	// KindDirectory is a local package directory.
	KindDirectory
	// KindTarball is a local package tarball.
	KindTarball
	// KindURL is a remote tarball or repository URL.
	KindURL
)

func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindDirectory:
		return "directory"
	case KindTarball:
		return "tarball"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Spec is a parsed package spec.
type Spec struct {
	Raw  string
	Kind Kind
	// Name is the package name of a registry spec.
	Name string
	// Version is the version, range or tag of a registry spec.
	Version string
	// Path is the absolute path of a local spec.
	Path string
}

// Scope returns the scope ("@acme") of a scoped registry spec.
func (s Spec) Scope() string {
	return Scope(s.Name)
}

// IsLocal reports whether the spec refers to the local file system.
func (s Spec) IsLocal() bool {
	return s.Kind == KindDirectory || s.Kind == KindTarball
}

// Scope returns the scope of a package name or the empty string.
func Scope(name string) string {
	if !strings.HasPrefix(name, "@") {
		return ""
	}
	scope, _, ok := strings.Cut(name, "/")
	if !ok {
		return ""
	}
	return scope
}

var urlPrefixes = []string{"http://", "https://", "git://", "git+", "github:", "gitlab:", "bitbucket:", "gist:"}

// ParseSpec classifies a package spec as accepted by the package manager.
func ParseSpec(raw string) Spec {
	raw = strings.TrimSpace(raw)
	spec := Spec{Raw: raw}

	for _, prefix := range urlPrefixes {
		if strings.HasPrefix(raw, prefix) {
			spec.Kind = KindURL
			return spec
		}
	}

	if path, ok := localPath(raw); ok {
		spec.Path = path
		if isTarball(path) {
			spec.Kind = KindTarball
		} else {
			spec.Kind = KindDirectory
		}
		return spec
	}

	spec.Kind = KindRegistry
	spec.Name, spec.Version = splitNameVersion(raw)
	return spec
}

func localPath(raw string) (string, bool) {
	path, hadPrefix := strings.CutPrefix(raw, "file:")
	looksLocal := hadPrefix ||
		strings.HasPrefix(path, ".") ||
		strings.HasPrefix(path, "~") ||
		filepath.IsAbs(path) ||
		isTarball(path)
	if !looksLocal {
		// a bare name is only a path when it exists, e.g. "my-plugin/"
		if _, err := os.Stat(path); err != nil || !strings.ContainsAny(path, `/\`) {
			return "", false
		}
	}
	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path), true
	}
	return abs, true
}

func isTarball(path string) bool {
	return strings.HasSuffix(path, ".tgz") || strings.HasSuffix(path, ".tar.gz") || strings.HasSuffix(path, ".tar")
}

func splitNameVersion(raw string) (string, string) {
	offset := 0
	if strings.HasPrefix(raw, "@") {
		offset = 1
	}
	i := strings.Index(raw[offset:], "@")
	if i < 0 {
		return raw, ""
	}
	i += offset
	return raw[:i], raw[i+1:]
}
