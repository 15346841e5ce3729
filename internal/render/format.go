// Package render writes command results as a table, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"sigs.k8s.io/yaml"
)

const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Formats are the accepted output formats, the default first.
var Formats = []string{FormatTable, FormatJSON, FormatYAML}

// Table is tabular output.
type Table struct {
	Header table.Row
	Rows   []table.Row
	// Merge lists the 1-based columns whose repeated values are merged.
	Merge []int
}

// Write renders value in format. The table format renders tbl instead.
func Write(w io.Writer, format string, value any, tbl Table) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(value)
	case FormatYAML:
		data, err := yaml.Marshal(value)
		if err != nil {
			return fmt.Errorf("could not encode output: %w", err)
		}
		_, err = w.Write(data)
		return err
	case FormatTable, "":
		WriteTable(w, tbl)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteTable renders tbl with light borderless styling.
func WriteTable(w io.Writer, tbl Table) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(tbl.Header)
	t.AppendRows(tbl.Rows)
	configs := make([]table.ColumnConfig, 0, len(tbl.Merge))
	for _, column := range tbl.Merge {
		configs = append(configs, table.ColumnConfig{Number: column, AutoMerge: true})
	}
	t.SetColumnConfigs(configs)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
