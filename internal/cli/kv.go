package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// KV is a titled list of fields kept in insertion order, used by the
// show-style commands.
type KV struct {
	out    *Output
	meta   Meta
	title  string
	fields []field
}

type field struct {
	name  string
	value any
}

// Title sets the heading.
func (k *KV) Title(title string) *KV {
	k.title = title
	return k
}

// Set appends a field.
func (k *KV) Set(name string, value any) *KV {
	k.fields = append(k.fields, field{name: name, value: value})
	return k
}

func (k *KV) Render() error {
	return k.out.Render(k)
}

func (k *KV) Meta() Meta {
	return k.meta
}

// RenderText prints the title line and one "name: value" row per field with
// the names padded to a common width.
func (k *KV) RenderText(w io.Writer) error {
	var b strings.Builder
	if k.title != "" {
		b.WriteString(Title(k.title, k.out.styled))
		b.WriteByte('\n')
	}
	if len(k.fields) > 0 {
		tw := table.NewWriter()
		tw.SetStyle(table.Style{
			Box:     table.StyleBoxDefault,
			Options: table.OptionsNoBordersAndSeparators,
		})
		tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignLeft}})
		for _, f := range k.fields {
			tw.AppendRow(table.Row{Subtitle(f.name+":", k.out.styled), fmt.Sprint(f.value)})
		}
		b.WriteString(tw.Render())
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// RenderJSON returns the fields as an object keyed by snake_case names.
func (k *KV) RenderJSON() any {
	obj := make(map[string]any, len(k.fields))
	for _, f := range k.fields {
		obj[toJSONKey(f.name)] = f.value
	}
	return obj
}

func (k *KV) RenderMarkdown(w io.Writer) error {
	var b strings.Builder
	if k.title != "" {
		fmt.Fprintf(&b, "## %s\n\n", k.title)
	}
	for _, f := range k.fields {
		fmt.Fprintf(&b, "- **%s:** %s\n", f.name, markdownValue(f.value))
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// markdownValue renders ids as code spans and escapes table pipes.
func markdownValue(v any) string {
	s := fmt.Sprint(v)
	if len(s) == 36 {
		if _, err := uuid.Parse(s); err == nil {
			return "`" + s + "`"
		}
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
