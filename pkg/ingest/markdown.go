package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// MarkdownExtractor uses Markdown sources in place.
type MarkdownExtractor struct{}

// NewMarkdown creates a Markdown passthrough extractor.
func NewMarkdown() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

// Extract returns the absolute path of source after checking it exists.
func (m *MarkdownExtractor) Extract(ctx context.Context, source, workDir string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("source not readable: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source %s is a directory", source)
	}
	return abs, nil
}

// Name returns the extractor type.
func (m *MarkdownExtractor) Name() string {
	return "markdown"
}
