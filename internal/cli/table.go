package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Table renders tabular data using go-pretty.
// Created via Output.Table().
type Table struct {
	out     *Output
	meta    Meta
	title   string
	headers []string
	rows    [][]string
	right   map[int]bool
}

// Title sets a heading printed above the table.
func (t *Table) Title(title string) *Table {
	t.title = title
	return t
}

// AlignRight right-aligns the given zero-based columns.
func (t *Table) AlignRight(cols ...int) *Table {
	if t.right == nil {
		t.right = make(map[int]bool, len(cols))
	}
	for _, c := range cols {
		t.right[c] = true
	}
	return t
}

// AddRow adds a row of values. Should match header count.
func (t *Table) AddRow(values ...string) *Table {
	t.rows = append(t.rows, values)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render outputs the table in the configured format.
func (t *Table) Render() error {
	return t.out.Render(t)
}

// Meta returns the table metadata.
func (t *Table) Meta() Meta {
	return t.meta
}

// RenderText writes an ASCII table using go-pretty.
func (t *Table) RenderText(w io.Writer) error {
	if t.title != "" {
		if _, err := fmt.Fprintln(w, Title(t.title, t.out.styled)); err != nil {
			return err
		}
	}
	tw := t.newTableWriter()
	tw.SetStyle(table.StyleLight)
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// RenderJSON returns the data as an array of objects.
func (t *Table) RenderJSON() any {
	result := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		obj := make(map[string]string)
		for i, h := range t.headers {
			if i < len(row) {
				obj[toJSONKey(h)] = row[i]
			}
		}
		result = append(result, obj)
	}
	return result
}

// RenderMarkdown writes a markdown table using go-pretty.
func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.title != "" {
		if _, err := fmt.Fprintf(w, "## %s\n\n", t.title); err != nil {
			return err
		}
	}
	tw := t.newTableWriter()
	_, err := io.WriteString(w, tw.RenderMarkdown()+"\n")
	return err
}

func (t *Table) newTableWriter() table.Writer {
	tw := table.NewWriter()

	headerRow := make(table.Row, len(t.headers))
	for i, h := range t.headers {
		headerRow[i] = h
	}
	tw.AppendHeader(headerRow)

	for _, row := range t.rows {
		tableRow := make(table.Row, len(row))
		for i, cell := range row {
			tableRow[i] = cell
		}
		tw.AppendRow(tableRow)
	}

	if len(t.right) > 0 {
		configs := make([]table.ColumnConfig, 0, len(t.right))
		for c := range t.right {
			configs = append(configs, table.ColumnConfig{Number: c + 1, Align: text.AlignRight})
		}
		tw.SetColumnConfigs(configs)
	}

	return tw
}

// toJSONKey converts a header to a JSON key (lowercase, underscores).
func toJSONKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}
