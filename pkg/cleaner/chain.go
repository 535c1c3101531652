package cleaner

import (
	"fmt"
	"strings"
)

// ChainCleaner applies multiple cleaners in sequence.
type ChainCleaner struct {
	cleaners []Cleaner
}

// NewChain creates a new cleaner that applies multiple cleaners in sequence.
// Cleaners are applied in the order provided.
//
// Example:
//
//	chain := cleaner.NewChain(
//	    cleaner.NewLogoBlockStripper(),
//	    cleaner.NewCaptionTokenRemover(nil),
//	)
func NewChain(cleaners ...Cleaner) *ChainCleaner {
	return &ChainCleaner{
		cleaners: cleaners,
	}
}

// Clean applies all cleaners in sequence.
func (c *ChainCleaner) Clean(content string) (string, error) {
	var err error
	for _, cleaner := range c.cleaners {
		content, err = cleaner.Clean(content)
		if err != nil {
			return "", fmt.Errorf("%s: %w", cleaner.Name(), err)
		}
	}
	return content, nil
}

// Name returns the names of all chained cleaners.
func (c *ChainCleaner) Name() string {
	names := make([]string, len(c.cleaners))
	for i, cleaner := range c.cleaners {
		names[i] = cleaner.Name()
	}
	return "chain(" + strings.Join(names, "->") + ")"
}

// FixedPointCleaner reapplies its inner cleaner until the output stops
// changing, or until maxPasses have run.
type FixedPointCleaner struct {
	inner     Cleaner
	maxPasses int
}

// NewFixedPoint wraps inner. maxPasses <= 0 selects a default of 8.
func NewFixedPoint(inner Cleaner, maxPasses int) *FixedPointCleaner {
	if maxPasses <= 0 {
		maxPasses = 8
	}
	return &FixedPointCleaner{inner: inner, maxPasses: maxPasses}
}

// Clean runs the inner cleaner until two consecutive results are equal.
func (c *FixedPointCleaner) Clean(content string) (string, error) {
	out, err := c.inner.Clean(content)
	if err != nil {
		return "", err
	}
	for i := 1; i < c.maxPasses; i++ {
		next, err := c.inner.Clean(out)
		if err != nil {
			return "", err
		}
		if next == out {
			break
		}
		out = next
	}
	return out, nil
}

// Name returns the wrapped cleaner name.
func (c *FixedPointCleaner) Name() string {
	return "fixpoint(" + c.inner.Name() + ")"
}
