// Package file provides a pflag value holding the path of a file.
package file

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
)

// Type is the type name of the path flag.
const Type = "path"

// Flag holds a path. The path is expanded on Set and the file is looked
// up; a missing file is not an error until the flag is used.
type Flag struct {
	path string
	fs.FileInfo
}

func (f *Flag) String() string {
	return f.path
}

// Exists reports whether the file was present when the flag was set.
func (f *Flag) Exists() bool {
	return f.FileInfo != nil
}

// IsSet reports whether the flag holds a path.
func (f *Flag) IsSet() bool {
	return f.path != ""
}

// RequireFile returns the path if it names an existing regular file.
func (f *Flag) RequireFile() (string, error) {
	switch {
	case !f.Exists():
		return "", fmt.Errorf("file %q does not exist", f.path)
	case f.IsDir():
		return "", fmt.Errorf("%q is a directory", f.path)
	}
	return f.path, nil
}

func (f *Flag) Set(s string) error {
	f.FileInfo = nil
	f.path = s
	if s == "" {
		return nil
	}
	expanded, err := homedir.Expand(s)
	if err != nil {
		return fmt.Errorf("unable to expand path %q: %w", s, err)
	}
	f.path = expanded
	info, err := os.Stat(expanded)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unable to stat path %q: %w", expanded, err)
	}
	f.FileInfo = info
	return nil
}

func (f *Flag) Type() string {
	return Type
}

func VarP(f *pflag.FlagSet, name, shorthand string, value string, usage string) {
	flag := &Flag{}
	_ = flag.Set(value)
	f.VarP(flag, name, shorthand, usage)
}

func Get(f *pflag.FlagSet, name string) (*Flag, error) {
	flag := f.Lookup(name)
	if flag == nil {
		return nil, fmt.Errorf("flag accessed but not defined: %s", name)
	}
	val, ok := flag.Value.(*Flag)
	if !ok {
		return nil, fmt.Errorf("trying to get %s value of flag of type %s", Type, flag.Value.Type())
	}
	return val, nil
}
