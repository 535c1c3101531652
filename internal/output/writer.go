// Package output renders reports and build metadata in the formats the CLI
// offers with --format.
package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format names an output encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	// FormatMarkdown renders Tabular items as Markdown tables.
	FormatMarkdown Format = "markdown"
)

// ErrUnsupportedFormat is returned for a format name that is not in Formats.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ErrClosed is returned when writing to a closed Writer.
var ErrClosed = errors.New("output writer closed")

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatJSONL, FormatYAML, FormatMarkdown}
}

// ParseFormat validates a --format value. Matching ignores case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats() {
		if f == known {
			return f, nil
		}
	}
	names := make([]string, 0, len(Formats()))
	for _, known := range Formats() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnsupportedFormat, s, strings.Join(names, ", "))
}

// Writer encodes items. JSONL streams each item as it is written; the other
// formats produce one document when the writer is closed.
type Writer interface {
	Write(item any) error
	WriteAll(items []any) error
	Close() error
}

// Option configures NewWriter.
type Option func(*options)

type options struct {
	indent string
	array  bool
	title  string
}

// WithCompact disables JSON indentation.
func WithCompact(enabled bool) Option {
	return func(o *options) {
		if enabled {
			o.indent = ""
		}
	}
}

// WithArray keeps a single item wrapped in a list, so a one-image report
// still decodes as a report.
func WithArray(enabled bool) Option {
	return func(o *options) { o.array = enabled }
}

// WithTitle sets the heading of Markdown output.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// NewWriter creates a writer for format.
func NewWriter(w io.Writer, format Format, opts ...Option) (Writer, error) {
	o := &options{indent: "  "}
	for _, opt := range opts {
		opt(o)
	}

	switch format {
	case FormatJSON:
		return &document{out: w, render: renderJSON(o.indent, o.array)}, nil
	case FormatYAML:
		return &document{out: w, render: renderYAML(o.array)}, nil
	case FormatMarkdown:
		return &document{out: w, render: renderMarkdown(o.title)}, nil
	case FormatJSONL:
		return newLines(w), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Items converts a typed slice for WriteAll.
func Items[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
