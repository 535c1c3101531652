// Package formula replaces formula image placeholders of the form
// $$![Formula](path.png)$$ with LaTeX produced by a Recognizer.
package formula

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/mdref"
)

var placeholder = regexp.MustCompile(`\$\$!\[Formula\]\(([^)]+\.(?:png|jpg|jpeg|gif|bmp))\)\$\$`)

// Recognizer turns a rendered formula image into LaTeX.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
	Name() string
}

// Stats counts placeholder outcomes.
type Stats struct {
	Found   int
	Inlined int
	Missing int
	Failed  int
}

// Inline replaces every formula placeholder in md. mdPath is the location of
// the document and anchors relative image paths. Placeholders whose image is
// missing or cannot be recognized are left unchanged. The error is non-nil
// only when ctx is done.
func Inline(ctx context.Context, md, mdPath string, r Recognizer) (string, Stats, error) {
	var stats Stats
	matches := placeholder.FindAllStringSubmatchIndex(md, -1)
	if len(matches) == 0 || r == nil {
		stats.Found = len(matches)
		return md, stats, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		stats.Found++
		b.WriteString(md[last:m[0]])
		last = m[1]
		original := md[m[0]:m[1]]

		imgPath := ResolveImage(mdPath, md[m[2]:m[3]])
		if _, err := os.Stat(imgPath); err != nil {
			logger.Warn("formula image not found", "image", imgPath)
			stats.Missing++
			b.WriteString(original)
			continue
		}

		latex, err := r.Recognize(ctx, imgPath)
		if err != nil {
			if ctx.Err() != nil {
				return md, stats, ctx.Err()
			}
			logger.Warn("formula recognition failed", "image", filepath.Base(imgPath), "recognizer", r.Name(), "error", err)
			stats.Failed++
			b.WriteString(original)
			continue
		}
		latex = strings.TrimSpace(latex)
		if latex == "" {
			stats.Failed++
			b.WriteString(original)
			continue
		}

		stats.Inlined++
		b.WriteString(wrap(latex))
	}
	b.WriteString(md[last:])

	logger.Debug("formulas inlined",
		"found", stats.Found,
		"inlined", stats.Inlined,
		"missing", stats.Missing,
		"failed", stats.Failed)
	return b.String(), stats, nil
}

// InlineFile runs Inline over the file at path and writes the result back.
func InlineFile(ctx context.Context, path string, r Recognizer) (Stats, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is the document being refined
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read markdown: %w", err)
	}
	out, stats, err := Inline(ctx, string(data), path, r)
	if err != nil {
		return stats, err
	}
	if stats.Inlined == 0 {
		return stats, nil
	}
	if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
		return stats, fmt.Errorf("failed to write markdown: %w", err)
	}
	return stats, nil
}

// ResolveImage returns the location of a formula image referenced from the
// document at mdPath. Extraction engines sometimes repeat the document's own
// directory name as the first path element (temp/temp/formulas/...); that
// element is dropped before resolving.
func ResolveImage(mdPath, target string) string {
	target = mdref.ToSlash(strings.TrimSpace(target))
	if filepath.IsAbs(filepath.FromSlash(target)) {
		return filepath.FromSlash(target)
	}

	dir := filepath.Dir(mdPath)
	parts := strings.Split(target, "/")
	if len(parts) > 1 && strings.EqualFold(parts[0], filepath.Base(dir)) {
		parts = parts[1:]
	}
	return filepath.Join(append([]string{dir}, parts...)...)
}

// wrap returns latex as display math unless it already carries delimiters.
func wrap(latex string) string {
	if strings.HasPrefix(latex, "$") && strings.HasSuffix(latex, "$") && len(latex) > 1 {
		return latex
	}
	latex = strings.TrimPrefix(strings.TrimSuffix(latex, `\]`), `\[`)
	return "$$\n" + strings.TrimSpace(latex) + "\n$$"
}
