package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/internal/runner"
)

// CommandExtractor runs an external extraction engine. Args is an argv
// template: {input} is replaced by the source path and {output} by a fresh
// directory under the work directory, unique to each call. The newest .md file the engine
// writes there is the result.
type CommandExtractor struct {
	Args []string
}

// NewCommand creates an extractor for the argv template args.
func NewCommand(args []string) *CommandExtractor {
	return &CommandExtractor{Args: args}
}

// Extract runs the engine on source.
func (c *CommandExtractor) Extract(ctx context.Context, source, workDir string) (string, error) {
	if len(c.Args) == 0 {
		return "", fmt.Errorf("%w: no extraction command configured", ErrUnsupportedFormat)
	}
	src, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("source not readable: %w", err)
	}

	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	outDir, err := os.MkdirTemp(workDir, stem(src)+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	start := time.Now()
	argv := runner.Expand(c.Args, map[string]string{"input": src, "output": outDir})
	if _, err := runner.Run(ctx, argv); err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}

	out, err := newestMarkdown(outDir)
	if err != nil {
		return "", err
	}
	logger.Info("document extracted", "engine", c.Name(), "source", src, "output", out, "duration", time.Since(start))
	return out, nil
}

// Name returns the engine program name.
func (c *CommandExtractor) Name() string {
	if len(c.Args) == 0 {
		return "command"
	}
	return filepath.Base(c.Args[0])
}

func newestMarkdown(dir string) (string, error) {
	var newest string
	var newestMod time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to scan extraction output: %w", err)
	}
	if newest == "" {
		return "", fmt.Errorf("extraction produced no markdown in %s", dir)
	}
	return newest, nil
}
