package main

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// column describes one table column. Numeric columns (progress,
// timings, counts) render right-aligned.
type column struct {
	title   string
	numeric bool
}

// Column sets for the tables the CLI prints. Each command references
// its own set so a layout change stays local to the view it affects.
var (
	jobListColumns = []column{
		{title: "ID"},
		{title: "Title"},
		{title: "Language"},
		{title: "Stage"},
		{title: "Progress", numeric: true},
		{title: "Detail"},
	}
	segmentColumns = []column{
		{title: "#", numeric: true},
		{title: "Start", numeric: true},
		{title: "End", numeric: true},
		{title: "Text"},
		{title: "Audio"},
	}
	languageColumns = []column{
		{title: "Code"},
		{title: "Language"},
		{title: "Native"},
		{title: "Locale"},
	}
	queueColumns = []column{
		{title: "Status"},
		{title: "Count", numeric: true},
	}
)

// renderTable renders rows under the given column set. Short rows are
// padded so a missing trailing cell never shifts the layout.
func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, 0, len(columns))
	for i, col := range columns {
		header[i] = col.title
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}

// writeJSON prints v as indented JSON, used by every --json flag.
func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
