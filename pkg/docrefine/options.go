package docrefine

import (
	"time"

	"github.com/jmylchreest/docrefine/pkg/cleaner"
	"github.com/jmylchreest/docrefine/pkg/formula"
	"github.com/jmylchreest/docrefine/pkg/ingest"
)

// Config holds the collaborators and settings of a Refiner.
type Config struct {
	Extractor  ingest.Extractor
	Recognizer formula.Recognizer
	Classifier Classifier
	Rewriter   Rewriter

	// Structural is the deterministic cleaner applied to the masked document.
	Structural cleaner.Cleaner
	// Logos runs before classification.
	Logos cleaner.Cleaner
	// Captions runs in the raw pipeline after filtering.
	Captions cleaner.Cleaner

	// OrderKey selects the rewrite fallback policy.
	OrderKey string
	// WorkDir receives extraction output and the judgment report.
	WorkDir string
	// Timeout bounds one document. Zero means no limit.
	Timeout time.Duration
	// KeepReport leaves the judgment report on disk.
	KeepReport bool
	// SkipClassification runs without a classifier; every image is kept.
	SkipClassification bool
}

// DefaultConfig returns the deterministic stages with no external
// collaborators configured.
func DefaultConfig() Config {
	return Config{
		Extractor:  ingest.NewAuto(nil),
		Structural: cleaner.NewStructural(cleaner.DefaultStructuralConfig()),
		Logos:      cleaner.NewLogoBlockStripper(),
		Captions:   cleaner.NewCaptionTokenRemover(nil),
		OrderKey:   "default",
	}
}

// Option configures a Refiner.
type Option func(*Config)

// WithExtractor sets the extraction collaborator.
func WithExtractor(e ingest.Extractor) Option {
	return func(c *Config) {
		c.Extractor = e
	}
}

// WithRecognizer sets the formula recognizer.
func WithRecognizer(r formula.Recognizer) Option {
	return func(c *Config) {
		c.Recognizer = r
	}
}

// WithClassifier sets the image classifier.
func WithClassifier(cl Classifier) Option {
	return func(c *Config) {
		c.Classifier = cl
	}
}

// WithRewriter sets the rewrite orchestrator.
func WithRewriter(r Rewriter) Option {
	return func(c *Config) {
		c.Rewriter = r
	}
}

// WithStructuralCleaner replaces the structural cleaner.
func WithStructuralCleaner(cl cleaner.Cleaner) Option {
	return func(c *Config) {
		c.Structural = cl
	}
}

// WithCaptionCleaner replaces the raw pipeline's caption cleanup.
func WithCaptionCleaner(cl cleaner.Cleaner) Option {
	return func(c *Config) {
		c.Captions = cl
	}
}

// WithOrderKey sets the rewrite policy key.
func WithOrderKey(key string) Option {
	return func(c *Config) {
		c.OrderKey = key
	}
}

// WithWorkDir sets the working directory.
func WithWorkDir(dir string) Option {
	return func(c *Config) {
		c.WorkDir = dir
	}
}

// WithTimeout sets the per-document time limit.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithKeepReport keeps the judgment report after filtering.
func WithKeepReport(keep bool) Option {
	return func(c *Config) {
		c.KeepReport = keep
	}
}

// WithSkipClassification disables image classification.
func WithSkipClassification(skip bool) Option {
	return func(c *Config) {
		c.SkipClassification = skip
	}
}
