package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestFlag(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "plugins.json")
	require.NoError(t, os.WriteFile(regular, []byte("{}"), 0o600))

	tests := []struct {
		name    string
		path    string
		exists  bool
		fileErr string
	}{
		{name: "regular file", path: regular, exists: true},
		{name: "missing file", path: filepath.Join(dir, "missing.json"), fileErr: "does not exist"},
		{name: "directory", path: dir, exists: true, fileErr: "is a directory"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			VarP(fs, "file", "f", "", "manifest file")
			r.NoError(fs.Parse([]string{"--file", tc.path}))

			flag, err := Get(fs, "file")
			r.NoError(err)
			r.True(flag.IsSet())
			r.Equal(tc.exists, flag.Exists())
			r.Equal(tc.path, flag.String())

			path, err := flag.RequireFile()
			if tc.fileErr != "" {
				r.ErrorContains(err, tc.fileErr)
				return
			}
			r.NoError(err)
			r.Equal(tc.path, path)
		})
	}
}

func TestGetWrongType(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("file", "", "plain")
	_, err := Get(fs, "file")
	require.ErrorContains(t, err, "trying to get path value")
	_, err = Get(fs, "missing")
	require.ErrorContains(t, err, "not defined")
}
