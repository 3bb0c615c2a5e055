package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Output formats accepted by -o/--output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Texter is implemented by command results with a human-readable form.
type Texter interface {
	Text() string
}

// ParseFormat normalizes an -o value. Empty means text.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", errors.NewValidationError("output",
		fmt.Sprintf("unknown format %q (supported: %s, %s, %s)", s, FormatText, FormatJSON, FormatYAML))
}

// Printer writes command results in one output format.
type Printer struct {
	w       io.Writer
	format  string
	compact bool
}

// NewPrinter returns a Printer for format writing to w (stdout when nil).
func NewPrinter(format string, w io.Writer) (*Printer, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stdout
	}
	return &Printer{w: w, format: f}, nil
}

// Compact drops indentation from JSON output.
func (p *Printer) Compact() *Printer {
	c := *p
	c.compact = true
	return &c
}

// Format returns the normalized output format.
func (p *Printer) Format() string {
	return p.format
}

// Print writes v. In text mode, values without a text form are written as
// indented JSON and nil writes nothing.
func (p *Printer) Print(v any) error {
	switch p.format {
	case FormatJSON:
		return p.printJSON(v)
	case FormatYAML:
		return p.printYAML(v)
	}

	var text string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		text = t
	case Texter:
		text = t.Text()
	case fmt.Stringer:
		text = t.String()
	default:
		return p.printJSON(v)
	}
	_, err := fmt.Fprintln(p.w, strings.TrimRight(text, "\n"))
	return err
}

func (p *Printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	if !p.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func (p *Printer) printYAML(v any) error {
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
