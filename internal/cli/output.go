// Package cli renders command results as text, JSON or markdown.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ParseFormat parses a format string, defaulting to text.
func ParseFormat(s string) Format {
	switch s {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	default:
		return FormatText
	}
}

// Meta describes a rendered result. It is the JSON envelope's meta object
// and the markdown frontmatter.
type Meta struct {
	Type      string    `json:"type" yaml:"type"`
	Version   string    `json:"version,omitempty" yaml:"version,omitempty"`
	Generated time.Time `json:"generated" yaml:"generated"`
}

// NewMeta creates metadata with the given type and current timestamp.
func NewMeta(resultType string) Meta {
	return Meta{
		Type:      resultType,
		Version:   "v1",
		Generated: time.Now().UTC(),
	}
}

// Renderable can render itself in multiple formats.
type Renderable interface {
	Meta() Meta
	RenderText(w io.Writer) error
	RenderJSON() any
	RenderMarkdown(w io.Writer) error
}

// Output handles formatted rendering with automatic envelope/frontmatter.
type Output struct {
	format Format
	w      io.Writer
	styled bool
}

// NewOutput creates an output renderer for the given format. Text output is
// styled when w is a terminal.
func NewOutput(format Format, w io.Writer) *Output {
	return &Output{format: format, w: w, styled: IsTerminal(w)}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Format returns the configured output format.
func (o *Output) Format() Format {
	return o.format
}

// Styled reports whether text output carries terminal styling.
func (o *Output) Styled() bool {
	return o.styled
}

// Table creates a new table renderer attached to this output.
func (o *Output) Table(resultType string, headers ...string) *Table {
	return &Table{
		out:     o,
		meta:    NewMeta(resultType),
		headers: headers,
	}
}

// KV creates a new key-value renderer attached to this output.
func (o *Output) KV(resultType string) *KV {
	return &KV{
		out:  o,
		meta: NewMeta(resultType),
	}
}

// Result creates a new result renderer attached to this output.
func (o *Output) Result(resultType, message string) *Result {
	return &Result{
		out:     o,
		meta:    NewMeta(resultType),
		message: message,
		details: make(map[string]any),
	}
}

// Error creates a new error renderer attached to this output.
func (o *Output) Error(resultType string, err error) *Error {
	return &Error{
		out:     o,
		meta:    NewMeta(resultType + "-error"),
		err:     err,
		details: make(map[string]any),
	}
}

// Render outputs the renderable in the configured format.
func (o *Output) Render(r Renderable) error {
	switch o.format {
	case FormatJSON:
		return o.renderJSON(r)
	case FormatMarkdown:
		return o.renderMarkdown(r)
	default:
		return r.RenderText(o.w)
	}
}

func (o *Output) renderJSON(r Renderable) error {
	envelope := struct {
		Meta Meta `json:"meta"`
		Data any  `json:"data"`
	}{
		Meta: r.Meta(),
		Data: r.RenderJSON(),
	}

	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(envelope)
}

func (o *Output) renderMarkdown(r Renderable) error {
	if err := WriteFrontmatter(o.w, r.Meta()); err != nil {
		return err
	}
	return r.RenderMarkdown(o.w)
}

// WriteFrontmatter writes v as a YAML frontmatter block followed by a blank
// line.
func WriteFrontmatter(w io.Writer, v any) error {
	if _, err := fmt.Fprintln(w, "---"); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}

	_, err := fmt.Fprint(w, "---\n\n")
	return err
}
