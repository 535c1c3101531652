package rewrite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmylchreest/docrefine/internal/logger"
)

// FallbackRewriter tries each rewriter in order until one succeeds.
type FallbackRewriter struct {
	rewriters []Rewriter
}

// NewFallback creates a fallback chain from the given rewriters.
// Rewriters are tried in order. Only available rewriters are used.
func NewFallback(rewriters ...Rewriter) *FallbackRewriter {
	return &FallbackRewriter{
		rewriters: rewriters,
	}
}

// Rewrite tries each rewriter in order until one succeeds.
func (f *FallbackRewriter) Rewrite(ctx context.Context, doc string) (*Result, error) {
	var lastErr error
	var tried []string

	for _, rw := range f.rewriters {
		if !rw.Available() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tried = append(tried, rw.Name())
		result, err := rw.Rewrite(ctx, doc)
		if err == nil {
			return result, nil
		}

		logger.Debug("rewriter failed, trying next", "rewriter", rw.Name(), "error", err)
		lastErr = err
	}

	if len(tried) == 0 {
		return nil, ErrNoRewriterAvailable
	}

	return nil, fmt.Errorf("all rewriters failed (tried: %s): %w", strings.Join(tried, ", "), lastErr)
}

// Name returns the fallback chain name.
func (f *FallbackRewriter) Name() string {
	var names []string
	for _, rw := range f.rewriters {
		names = append(names, rw.Name())
	}
	return "fallback(" + strings.Join(names, "->") + ")"
}

// Available returns true if at least one rewriter is available.
func (f *FallbackRewriter) Available() bool {
	for _, rw := range f.rewriters {
		if rw.Available() {
			return true
		}
	}
	return false
}
