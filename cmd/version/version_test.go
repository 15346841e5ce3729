package version

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	r := require.New(t)
	original := BuildVersion
	t.Cleanup(func() { BuildVersion = original })

	BuildVersion = "v1.4.2-rc.1+abc"
	r.Equal("1.4.2-rc.1+abc", Get())

	BuildVersion = "not-a-version"
	r.Equal(FallbackVersion, Get())
}

func TestGetInfo(t *testing.T) {
	r := require.New(t)
	info, err := GetInfo("2.3.4-beta.1+build.7")
	r.NoError(err)
	r.Equal("2", info.Major)
	r.Equal("3", info.Minor)
	r.Equal("4", info.Patch)
	r.Equal("beta.1", info.PreRelease)
	r.Equal("build.7", info.Meta)

	_, err = GetInfo("latest")
	r.Error(err)
}

func TestCommand(t *testing.T) {
	r := require.New(t)
	original := BuildVersion
	t.Cleanup(func() { BuildVersion = original })
	BuildVersion = "1.2.3"

	var out bytes.Buffer
	cmd := New()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--format", "json"})
	r.NoError(cmd.Execute())
	var info Info
	r.NoError(json.Unmarshal(out.Bytes(), &info))
	r.Equal("1.2.3", info.Version)

	out.Reset()
	cmd = New()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	r.NoError(cmd.Execute())
	r.Equal("1.2.3\n", out.String())
}
