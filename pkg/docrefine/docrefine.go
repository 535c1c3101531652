// Package docrefine composes the refinement stages into the two end-to-end
// pipelines.
//
// The full pipeline strips logo blocks, inlines recognized formulas,
// classifies images, filters the document against the resulting judgment
// report, cleans it deterministically under a math mask and finally asks the
// rewrite orchestrator for a polished version. The raw pipeline stops before
// the rewrite and removes bare caption tokens instead.
//
// Basic usage:
//
//	r, err := docrefine.New(
//	    docrefine.WithClassifier(classifier),
//	    docrefine.WithRewriter(orchestrator),
//	)
//	res, err := r.RefineFile(ctx, "lecture.pdf", docrefine.ModeFull)
//	fmt.Print(res.Text)
package docrefine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/formula"
	"github.com/jmylchreest/docrefine/pkg/imagefilter"
	"github.com/jmylchreest/docrefine/pkg/judgment"
	"github.com/jmylchreest/docrefine/pkg/mathmask"
	"github.com/jmylchreest/docrefine/pkg/rewrite"
)

var (
	// ErrNoClassifier is returned when a pipeline needs judgments but no
	// classifier is configured.
	ErrNoClassifier = errors.New("no image classifier configured")

	// ErrNoExtractor is returned by RefineFile without an extractor.
	ErrNoExtractor = errors.New("no extractor configured")
)

// Classifier produces the judgment report for a document.
type Classifier interface {
	ClassifyMarkdown(ctx context.Context, md, baseDir string) (judgment.Report, error)
}

// Rewriter polishes a cleaned document. It must not fail; on any problem it
// returns the input with Fallback set.
type Rewriter interface {
	Rewrite(ctx context.Context, doc, orderKey string) *rewrite.Outcome
}

// Mode selects a pipeline.
type Mode string

const (
	ModeFull Mode = "full"
	ModeRaw  Mode = "raw"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFull, "":
		return ModeFull, nil
	case ModeRaw:
		return ModeRaw, nil
	}
	return "", fmt.Errorf("unknown mode %q (use full or raw)", s)
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Name     string
	Duration time.Duration
}

// Result is the outcome of one pipeline run.
type Result struct {
	Mode Mode
	// Source is the input document, Markdown the file the stages ran on.
	Source   string
	Markdown string
	// Text is the final document.
	Text string

	Report judgment.Report
	// ReportPath is set when the report was kept on disk.
	ReportPath string
	Formulas   formula.Stats
	Filter     imagefilter.Stats
	MathSpans  int
	// Rewrite is nil for the raw pipeline.
	Rewrite *rewrite.Outcome

	Stages   []StageTiming
	Duration time.Duration
}

// Refiner runs refinement pipelines. A Refiner holds no per-document state;
// concurrent calls are independent.
type Refiner struct {
	config Config
}

// New creates a Refiner.
func New(opts ...Option) (*Refiner, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Structural == nil || cfg.Logos == nil || cfg.Captions == nil {
		return nil, errors.New("cleaners must not be nil")
	}
	if cfg.Rewriter == nil {
		cfg.Rewriter = rewrite.NewOrchestrator(nil)
	}
	return &Refiner{config: cfg}, nil
}

// RefineFile extracts source and runs the pipeline selected by mode on the
// resulting Markdown.
func (r *Refiner) RefineFile(ctx context.Context, source string, mode Mode) (*Result, error) {
	if r.config.Extractor == nil {
		return nil, ErrNoExtractor
	}
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	workDir, err := r.workDir()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	mdPath, err := r.config.Extractor.Extract(ctx, source, workDir)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", source, err)
	}
	extractTime := time.Since(start)

	data, err := os.ReadFile(mdPath) //#nosec G304 -- path produced by the extractor
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted markdown: %w", err)
	}

	var res *Result
	switch mode {
	case ModeRaw:
		res, err = r.Raw(ctx, string(data), mdPath)
	default:
		res, err = r.Full(ctx, string(data), mdPath)
	}
	if err != nil {
		return nil, err
	}
	res.Source = source
	res.Stages = append([]StageTiming{{Name: "extract", Duration: extractTime}}, res.Stages...)
	res.Duration += extractTime
	return res, nil
}

// Full runs the full pipeline on md. mdPath anchors relative image and
// formula references.
func (r *Refiner) Full(ctx context.Context, md, mdPath string) (*Result, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	dr := r.newRun(ModeFull, mdPath)
	text, err := r.prepare(ctx, dr, md)
	if err != nil {
		return nil, err
	}

	var masks *mathmask.TokenMap
	if err := dr.stage(ctx, "clean", func() error {
		text, masks, err = r.clean(text)
		dr.res.MathSpans = masks.Len()
		return err
	}); err != nil {
		return nil, err
	}

	if err := dr.stage(ctx, "rewrite", func() error {
		dr.res.Rewrite = r.config.Rewriter.Rewrite(ctx, text, r.config.OrderKey)
		text = mathmask.Restore(dr.res.Rewrite.Text, masks)
		return nil
	}); err != nil {
		return nil, err
	}

	return dr.finish(text), nil
}

// Raw runs the raw pipeline on md: no rewrite, plus caption cleanup.
func (r *Refiner) Raw(ctx context.Context, md, mdPath string) (*Result, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	dr := r.newRun(ModeRaw, mdPath)
	text, err := r.prepare(ctx, dr, md)
	if err != nil {
		return nil, err
	}

	if err := dr.stage(ctx, "captions", func() error {
		text, err = r.config.Captions.Clean(text)
		return err
	}); err != nil {
		return nil, err
	}

	if err := dr.stage(ctx, "clean", func() error {
		var masks *mathmask.TokenMap
		text, masks, err = r.clean(text)
		dr.res.MathSpans = masks.Len()
		return err
	}); err != nil {
		return nil, err
	}

	return dr.finish(text), nil
}

// prepare runs the stages shared by both pipelines, up to and including
// the usefulness filter.
func (r *Refiner) prepare(ctx context.Context, dr *docRun, md string) (string, error) {
	text := md
	var err error

	if err = dr.stage(ctx, "logos", func() error {
		text, err = r.config.Logos.Clean(text)
		return err
	}); err != nil {
		return "", err
	}

	if r.config.Recognizer != nil {
		if err = dr.stage(ctx, "formulas", func() error {
			text, dr.res.Formulas, err = formula.Inline(ctx, text, dr.res.Markdown, r.config.Recognizer)
			return err
		}); err != nil {
			return "", err
		}
	}

	var report judgment.Report
	if err = dr.stage(ctx, "classify", func() error {
		report, err = r.classify(ctx, text, filepath.Dir(dr.res.Markdown))
		return err
	}); err != nil {
		return "", err
	}

	if err = dr.stage(ctx, "report", func() error {
		dr.res.Report, dr.res.ReportPath, err = r.handOff(report)
		return err
	}); err != nil {
		return "", err
	}

	if err = dr.stage(ctx, "filter", func() error {
		text, dr.res.Filter = imagefilter.Apply(text, dr.res.Report)
		return nil
	}); err != nil {
		return "", err
	}
	return text, nil
}

func (r *Refiner) classify(ctx context.Context, md, baseDir string) (judgment.Report, error) {
	if r.config.Classifier == nil {
		if r.config.SkipClassification {
			logger.Debug("image classification skipped")
			return judgment.Report{}, nil
		}
		return nil, ErrNoClassifier
	}
	report, err := r.config.Classifier.ClassifyMarkdown(ctx, md, baseDir)
	if err != nil {
		return nil, fmt.Errorf("classify images: %w", err)
	}
	return report, nil
}

// handOff persists the report and reads it back, so the filter consumes
// exactly the artifact that was written. The file is removed unless the
// report is kept.
func (r *Refiner) handOff(report judgment.Report) (judgment.Report, string, error) {
	dir, err := r.workDir()
	if err != nil {
		return nil, "", err
	}
	f, err := os.CreateTemp(dir, "judgments-*.json")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create judgment report: %w", err)
	}
	path := f.Name()
	_ = f.Close()

	if !r.config.KeepReport {
		defer func() { _ = os.Remove(path) }()
	}
	if err := judgment.WriteFile(path, report); err != nil {
		return nil, "", err
	}
	loaded, err := judgment.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if !r.config.KeepReport {
		path = ""
	}
	return loaded, path, nil
}

// clean masks math, runs the structural cleaner and restores math. The
// returned map is the one used for masking.
func (r *Refiner) clean(text string) (string, *mathmask.TokenMap, error) {
	masked, masks := mathmask.Mask(text)
	cleaned, err := r.config.Structural.Clean(masked)
	if err != nil {
		return "", nil, fmt.Errorf("clean: %w", err)
	}
	return mathmask.Restore(cleaned, masks), masks, nil
}

func (r *Refiner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.config.Timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			return context.WithTimeout(ctx, r.config.Timeout)
		}
	}
	return context.WithCancel(ctx)
}

func (r *Refiner) workDir() (string, error) {
	dir := r.config.WorkDir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "docrefine")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	return dir, nil
}

// docRun tracks one document through the stages.
type docRun struct {
	res   *Result
	start time.Time
	log   *slog.Logger
}

func (r *Refiner) newRun(mode Mode, mdPath string) *docRun {
	return &docRun{
		res:   &Result{Mode: mode, Source: mdPath, Markdown: mdPath},
		start: time.Now(),
		log:   logger.With("mode", string(mode), "document", filepath.Base(mdPath)),
	}
}

// stage runs fn after checking that the document's context is still live.
func (ru *docRun) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s aborted before %s: %w", ru.res.Markdown, name, err)
	}
	start := time.Now()
	if err := fn(); err != nil {
		return err
	}
	d := time.Since(start)
	ru.res.Stages = append(ru.res.Stages, StageTiming{Name: name, Duration: d})
	ru.log.Debug("stage complete", "stage", name, "duration", d)
	return nil
}

func (ru *docRun) finish(text string) *Result {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	ru.res.Text = text
	ru.res.Duration = time.Since(ru.start)

	args := []any{
		"images", len(ru.res.Report),
		"removed", ru.res.Filter.Removed,
		"duration", ru.res.Duration,
	}
	if ru.res.Rewrite != nil {
		args = append(args, "rewritten", !ru.res.Rewrite.Fallback, "provider", ru.res.Rewrite.Provider)
	}
	logger.Info("document refined", append([]any{"mode", string(ru.res.Mode), "document", ru.res.Markdown}, args...)...)
	return ru.res
}
