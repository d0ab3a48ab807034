package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/markdown"
	"gopkg.in/yaml.v3"
)

// Format represents the output format for a rendered registry.
type Format string

const (
	// FormatJSON renders the registry as JSON.
	FormatJSON Format = "json"
	// FormatYAML renders the registry as YAML.
	FormatYAML Format = "yaml"
	// FormatMarkdown renders the registry as a Markdown table.
	FormatMarkdown Format = "markdown"
)

// IsValid returns true if the format is recognized.
func (f Format) IsValid() bool {
	switch f {
	case FormatJSON, FormatYAML, FormatMarkdown:
		return true
	default:
		return false
	}
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}

// ParseFormat parses a string into a Format.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(s)))
	if !format.IsValid() {
		return "", fmt.Errorf("unknown format %q (valid: json, yaml, markdown)", s)
	}
	return format, nil
}

// Render writes the document to w in the requested format.
func (d *Document) Render(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(d)
	case FormatMarkdown:
		return d.renderMarkdown(w)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// renderMarkdown writes the registry as a skill index table.
func (d *Document) renderMarkdown(w io.Writer) error {
	rows := make([][]string, 0, len(d.Skills))
	for _, s := range d.Skills {
		rows = append(rows, []string{"`" + s.Path + "`", s.Name, s.Description})
	}

	md := markdown.NewMarkdown(w)
	md.H1("Skill Registry")
	md.PlainText("")
	md.PlainTextf("%d skills, updated %s.", d.SkillsCount, d.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Directory", "Name", "Description"},
		Rows:   rows,
	})
	return md.Build()
}
