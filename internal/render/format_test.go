package render

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"
)

type plugin struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func TestWrite(t *testing.T) {
	value := []plugin{{Name: "sample-plugin", Version: "1.0.0"}}
	tbl := Table{
		Header: table.Row{"Plugin", "Version"},
		Rows:   []table.Row{{"sample-plugin", "1.0.0"}},
	}

	t.Run("table", func(t *testing.T) {
		r := require.New(t)
		var buf bytes.Buffer
		r.NoError(Write(&buf, FormatTable, value, tbl))
		r.Contains(buf.String(), "PLUGIN")
		r.Contains(buf.String(), "sample-plugin")
	})

	t.Run("json", func(t *testing.T) {
		r := require.New(t)
		var buf bytes.Buffer
		r.NoError(Write(&buf, FormatJSON, value, tbl))
		var decoded []plugin
		r.NoError(json.Unmarshal(buf.Bytes(), &decoded))
		r.Equal(value, decoded)
	})

	t.Run("yaml", func(t *testing.T) {
		r := require.New(t)
		var buf bytes.Buffer
		r.NoError(Write(&buf, FormatYAML, value, tbl))
		var decoded []plugin
		r.NoError(yaml.Unmarshal(buf.Bytes(), &decoded))
		r.Equal(value, decoded)
	})

	t.Run("unknown", func(t *testing.T) {
		require.ErrorContains(t, Write(&bytes.Buffer{}, "xml", value, tbl), "unknown output format")
	})
}
