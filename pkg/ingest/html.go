package ingest

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/mdref"
)

// noise lists elements removed before conversion.
const noise = "script, style, noscript, template, iframe, nav, footer"

// HTMLExtractor converts HTML documents to Markdown. Relative image sources
// are made absolute against the source's directory so the Markdown can live
// in the work directory.
type HTMLExtractor struct{}

// NewHTML creates an HTML extractor.
func NewHTML() *HTMLExtractor {
	return &HTMLExtractor{}
}

// Extract converts source and writes <workDir>/<stem>-<random>.md.
func (h *HTMLExtractor) Extract(ctx context.Context, source, workDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := filepath.Abs(source)
	if err != nil {
		return "", err
	}
	f, err := os.Open(src) //#nosec G304 -- source is chosen by the operator
	if err != nil {
		return "", fmt.Errorf("source not readable: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	doc.Find(noise).Remove()

	baseDir := filepath.Dir(src)
	images := 0
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		raw, _ := s.Attr("src")
		s.SetAttr("src", absoluteImage(baseDir, raw))
		images++
	})

	html, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render html: %w", err)
	}
	markdown, err := md.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert html: %w", err)
	}

	if err := os.MkdirAll(workDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	mf, err := os.CreateTemp(workDir, stem(src)+"-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to create markdown: %w", err)
	}
	out := mf.Name()
	_, err = mf.WriteString(strings.TrimSpace(markdown) + "\n")
	if cerr := mf.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("failed to write markdown: %w", err)
	}

	logger.Debug("html converted", "source", src, "output", out, "images", images)
	return out, nil
}

// Name returns the extractor type.
func (h *HTMLExtractor) Name() string {
	return "html"
}

// absoluteImage resolves a relative, possibly URL-escaped, image source.
func absoluteImage(baseDir, src string) string {
	src = strings.TrimSpace(src)
	if src == "" || mdref.IsRemote(src) {
		return src
	}
	if strings.HasPrefix(src, "file://") {
		return strings.TrimPrefix(src, "file://")
	}
	if u, err := url.PathUnescape(src); err == nil {
		src = u
	}
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	return filepath.ToSlash(mdref.Resolve(baseDir, src))
}
