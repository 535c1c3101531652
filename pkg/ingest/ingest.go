// Package ingest turns a source document into a Markdown file whose image
// references point at files on disk. Heavy extraction engines are reached
// through CommandExtractor; HTML and Markdown are handled in process.
package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when no extractor handles a source.
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Extractor produces a Markdown file from source. Generated files are
// written under workDir; the returned path is the Markdown to refine.
type Extractor interface {
	Extract(ctx context.Context, source, workDir string) (string, error)

	// Name returns the extractor identifier.
	Name() string
}

// stem returns the file name of path without its extension.
func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
