package ingest

import (
	"context"
	"fmt"
)

// AutoExtractor dispatches on the source extension: Markdown is used in
// place, HTML is converted in process, anything else goes to the command
// engine when one is configured.
type AutoExtractor struct {
	markdown Extractor
	html     Extractor
	command  Extractor
}

// NewAuto creates a dispatcher. command may be nil.
func NewAuto(command Extractor) *AutoExtractor {
	return &AutoExtractor{
		markdown: NewMarkdown(),
		html:     NewHTML(),
		command:  command,
	}
}

// For returns the extractor that handles source.
func (a *AutoExtractor) For(source string) (Extractor, error) {
	switch ext(source) {
	case ".md", ".markdown":
		return a.markdown, nil
	case ".html", ".htm", ".xhtml":
		return a.html, nil
	}
	if a.command != nil {
		return a.command, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext(source))
}

// Extract runs the extractor chosen by For.
func (a *AutoExtractor) Extract(ctx context.Context, source, workDir string) (string, error) {
	e, err := a.For(source)
	if err != nil {
		return "", err
	}
	return e.Extract(ctx, source, workDir)
}

// Name returns the dispatcher name.
func (a *AutoExtractor) Name() string {
	if a.command == nil {
		return "auto(markdown,html)"
	}
	return "auto(markdown,html," + a.command.Name() + ")"
}
