// Package rewrite asks language models to polish a cleaned Markdown document.
//
// Backends are tried in a configured fallback order. The Orchestrator never
// fails: when no backend produces text, the cleaned input is returned
// unchanged and the fallback is reported on the Outcome.
package rewrite

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/docrefine/pkg/llm"
)

// ErrNoRewriterAvailable is returned when no rewriter in a chain is available.
var ErrNoRewriterAvailable = errors.New("no rewriter available")

// ErrEmptyResponse is returned when a backend answers with no usable text.
var ErrEmptyResponse = errors.New("empty rewrite response")

// Rewriter produces a rewritten version of a document.
type Rewriter interface {
	// Rewrite returns the rewritten document.
	Rewrite(ctx context.Context, doc string) (*Result, error)

	// Name returns the rewriter identifier.
	Name() string

	// Available returns true if the rewriter is configured and can be called.
	Available() bool
}

// Result holds a successful rewrite.
type Result struct {
	Text     string
	Provider string
	// Model is the model that answered (may differ from requested for auto-routing).
	Model    string
	Usage    llm.Usage
	Duration time.Duration
}
