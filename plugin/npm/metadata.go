package npm

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/nlepage/go-tarfs"
	"github.com/tidwall/gjson"

	"ocm.software/open-component-model/plughost/plugin/manager/types"
)

const descriptorFile = "package.json"

// Describe returns name and version of the package a spec refers to. Registry
// specs name their package, local specs are read from disk and URLs are
// looked up with the package manager. The version of a registry spec is
// only known after installation and left empty.
func Describe(ctx context.Context, pm PackageManager, spec Spec) (PackageInfo, error) {
	switch spec.Kind {
	case KindRegistry:
		return PackageInfo{Name: spec.Name}, nil
	case KindDirectory:
		data, err := os.ReadFile(filepath.Join(spec.Path, descriptorFile))
		if err != nil {
			return PackageInfo{}, types.NewError(types.ErrIO, fmt.Sprintf("could not read the package descriptor in %q", spec.Path), err)
		}
		return parseDescriptor(spec.Path, data)
	case KindTarball:
		return DescribeTarball(spec.Path)
	default:
		return pm.View(ctx, spec.Raw)
	}
}

// DescribeTarball reads name and version from the descriptor inside a package tarball.
func DescribeTarball(tarball string) (PackageInfo, error) {
	f, err := os.Open(tarball)
	if err != nil {
		return PackageInfo{}, types.NewError(types.ErrIO, fmt.Sprintf("could not open package tarball %q", tarball), err)
	}
	defer func() {
		_ = f.Close()
	}()

	var reader io.Reader = f
	if filepath.Ext(tarball) != ".tar" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return PackageInfo{}, types.NewError(types.ErrIO, fmt.Sprintf("failed to initialize gzip reader for %q", tarball), err)
		}
		defer func() {
			_ = gz.Close()
		}()
		reader = gz
	}

	tfs, err := tarfs.New(reader)
	if err != nil {
		return PackageInfo{}, types.NewError(types.ErrIO, fmt.Sprintf("failed to read package tarball %q", tarball), err)
	}
	descriptor, err := findDescriptor(tfs)
	if err != nil {
		return PackageInfo{}, types.NewError(types.ErrIO, fmt.Sprintf("package tarball %q has no %s", tarball, descriptorFile), err)
	}
	data, err := fs.ReadFile(tfs, descriptor)
	if err != nil {
		return PackageInfo{}, types.NewError(types.ErrIO, fmt.Sprintf("could not read %s of %q", descriptor, tarball), err)
	}
	return parseDescriptor(tarball, data)
}

// findDescriptor returns the descriptor of the package's top-level directory,
// which is "package" for tarballs created by npm pack.
func findDescriptor(fsys fs.FS) (string, error) {
	if _, err := fs.Stat(fsys, path.Join("package", descriptorFile)); err == nil {
		return path.Join("package", descriptorFile), nil
	}
	if _, err := fs.Stat(fsys, descriptorFile); err == nil {
		return descriptorFile, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := path.Join(e.Name(), descriptorFile)
		if _, err := fs.Stat(fsys, candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fs.ErrNotExist
}

func parseDescriptor(source string, data []byte) (PackageInfo, error) {
	if !gjson.ValidBytes(data) {
		return PackageInfo{}, types.NewError(types.ErrIO, fmt.Sprintf("the package descriptor of %q is not valid JSON", source), nil)
	}
	info := PackageInfo{
		Name:    gjson.GetBytes(data, "name").String(),
		Version: gjson.GetBytes(data, "version").String(),
	}
	if info.Name == "" {
		return PackageInfo{}, types.NewError(types.ErrConfig, fmt.Sprintf("the package descriptor of %q has no name", source), nil)
	}
	return info, nil
}

// InstalledVersion reads the version of an installed package from its descriptor.
func InstalledVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, descriptorFile))
	if err != nil {
		return "", types.NewError(types.ErrIO, fmt.Sprintf("could not read the package descriptor in %q", dir), err)
	}
	info, err := parseDescriptor(dir, data)
	if err != nil {
		return "", err
	}
	return info.Version, nil
}
