package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nao1215/markdown"
	"gopkg.in/yaml.v3"
)

// Tabular is implemented by items that render as a table, such as a
// judgment report or version info.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// document buffers items and renders them once, on Close.
type document struct {
	out    io.Writer
	render func(io.Writer, []any) error
	items  []any
	closed bool
}

func (d *document) Write(item any) error {
	return d.WriteAll([]any{item})
}

func (d *document) WriteAll(items []any) error {
	if d.closed {
		return ErrClosed
	}
	d.items = append(d.items, items...)
	return nil
}

// Close renders the buffered items. Later calls are no-ops.
func (d *document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.render(d.out, d.items)
}

// unwrap returns a lone item bare unless array output was requested.
func unwrap(items []any, array bool) any {
	switch {
	case len(items) == 1 && !array:
		return items[0]
	case items == nil:
		return []any{}
	}
	return items
}

func renderJSON(indent string, array bool) func(io.Writer, []any) error {
	return func(w io.Writer, items []any) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", indent)
		// Image paths and model reasons are shown as written.
		enc.SetEscapeHTML(false)
		return enc.Encode(unwrap(items, array))
	}
}

func renderYAML(array bool) func(io.Writer, []any) error {
	return func(w io.Writer, items []any) error {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(unwrap(items, array)); err != nil {
			return err
		}
		return enc.Close()
	}
}

func renderMarkdown(title string) func(io.Writer, []any) error {
	return func(w io.Writer, items []any) error {
		md := markdown.NewMarkdown(w)
		if title != "" {
			md.H1(title)
			md.PlainText("")
		}
		for _, item := range items {
			t, ok := item.(Tabular)
			switch {
			case !ok:
				md.PlainText(fmt.Sprint(item))
			case len(t.Rows()) == 0:
				md.PlainText("_No entries._")
			default:
				md.Table(markdown.TableSet{Header: t.Header(), Rows: t.Rows()})
			}
			md.PlainText("")
		}
		return md.Build()
	}
}

// lines writes newline-delimited JSON, one item per line, unbuffered so a
// reader can follow a long run.
type lines struct {
	enc    *json.Encoder
	closed bool
}

func newLines(w io.Writer) *lines {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &lines{enc: enc}
}

func (l *lines) Write(item any) error {
	if l.closed {
		return ErrClosed
	}
	return l.enc.Encode(item)
}

func (l *lines) WriteAll(items []any) error {
	for _, item := range items {
		if err := l.Write(item); err != nil {
			return err
		}
	}
	return nil
}

func (l *lines) Close() error {
	l.closed = true
	return nil
}
