package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// OutputFormat selects how command results are rendered.
type OutputFormat string

const (
	// FormatText is human-readable output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is machine-readable JSON output.
	FormatJSON OutputFormat = "json"
)

// Formatter renders a command result to a writer.
type Formatter interface {
	FormatTo(w io.Writer, data interface{}) error
}

// TextFormatter renders results as plain text. Values implementing
// fmt.Stringer use their own rendering.
type TextFormatter struct{}

// FormatTo writes data to w as text.
func (f *TextFormatter) FormatTo(w io.Writer, data interface{}) error {
	if s, ok := data.(fmt.Stringer); ok {
		_, err := io.WriteString(w, s.String())
		return err
	}
	_, err := fmt.Fprintf(w, "%v\n", data)
	return err
}

// JSONFormatter renders results as indented JSON.
type JSONFormatter struct{}

// FormatTo writes data to w as JSON.
func (f *JSONFormatter) FormatTo(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// NewFormatter creates a formatter for the given format name.
func NewFormatter(format OutputFormat) (Formatter, error) {
	switch format {
	case FormatText, "":
		return &TextFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}
