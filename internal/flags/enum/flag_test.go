package enum

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	assert.Panics(t, func() {
		New()
	})

	options := []string{"table", "json", "yaml"}
	flag := New(options...)
	assert.Equal(t, "table", flag.String())
	require.NoError(t, flag.Set("yaml"))
	assert.Equal(t, []string{"table", "json", "yaml"}, options, "setting a value leaves the options untouched")
}

func TestFlag_Set(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantErr  bool
		expected string
	}{
		{name: "valid value", value: "json", expected: "json"},
		{name: "invalid value", value: "xml", wantErr: true, expected: "table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag := New("table", "json", "yaml")
			err := flag.Set(tt.value)
			if tt.wantErr {
				assert.ErrorContains(t, err, "expected one of")
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.expected, flag.String())
		})
	}
}

func TestGet(t *testing.T) {
	r := require.New(t)
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	VarP(fs, "output", "o", []string{"table", "json", "yaml"}, "output format")
	fs.String("plain", "", "a string flag")

	r.NoError(fs.Parse([]string{"-o", "json"}))
	value, err := Get(fs, "output")
	r.NoError(err)
	r.Equal("json", value)
	r.Contains(fs.Lookup("output").Usage, "[json table yaml]")

	_, err = Get(fs, "missing")
	r.ErrorContains(err, "not defined")
	_, err = Get(fs, "plain")
	r.ErrorContains(err, "trying to get enum value")
}
