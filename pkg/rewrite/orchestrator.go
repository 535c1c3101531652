package rewrite

import (
	"context"
	"strings"
	"time"

	"github.com/jmylchreest/docrefine/internal/logger"
)

// DefaultOrderKey names the policy used when none is requested.
const DefaultOrderKey = "default"

// Outcome describes what the Orchestrator returned.
type Outcome struct {
	// Text is the rewritten document, or the input when Fallback is set.
	Text     string
	Provider string
	Model    string
	// Fallback is true when no backend produced a rewrite.
	Fallback bool
	// Err is the reason for the fallback.
	Err      error
	Duration time.Duration
}

// Orchestrator selects a fallback order by policy key and runs it.
type Orchestrator struct {
	rewriters map[string]Rewriter
	// registered keeps the order rewriters were added in.
	registered []string
	policies   map[string][]string
	order      []string
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithPolicy registers a named fallback order.
func WithPolicy(key string, order []string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.policies[key] = order
	}
}

// WithPolicies registers several named fallback orders.
func WithPolicies(policies map[string][]string) OrchestratorOption {
	return func(o *Orchestrator) {
		for k, v := range policies {
			o.policies[k] = v
		}
	}
}

// WithFallbackOrder sets the order used when no policy matches.
func WithFallbackOrder(order []string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.order = order
	}
}

// NewOrchestrator creates an orchestrator over rewriters, keyed by Name.
// Without a configured order, rewriters are tried in the order given.
func NewOrchestrator(rewriters []Rewriter, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		rewriters: make(map[string]Rewriter, len(rewriters)),
		policies:  make(map[string][]string),
	}
	for _, rw := range rewriters {
		if rw == nil {
			continue
		}
		if _, dup := o.rewriters[rw.Name()]; !dup {
			o.registered = append(o.registered, rw.Name())
		}
		o.rewriters[rw.Name()] = rw
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Order returns the backend names tried for key.
func (o *Orchestrator) Order(key string) []string {
	if key == "" {
		key = DefaultOrderKey
	}
	if order, ok := o.policies[key]; ok {
		return order
	}
	if key != DefaultOrderKey {
		logger.Debug("unknown rewrite policy, using default", "order_key", key)
	}
	if order, ok := o.policies[DefaultOrderKey]; ok {
		return order
	}
	if len(o.order) > 0 {
		return o.order
	}
	return o.registered
}

// Chain builds the fallback chain for key. Names with no registered
// rewriter are skipped.
func (o *Orchestrator) Chain(key string) *FallbackRewriter {
	var chain []Rewriter
	for _, name := range o.Order(key) {
		if rw, ok := o.rewriters[strings.TrimSpace(name)]; ok {
			chain = append(chain, rw)
		}
	}
	return NewFallback(chain...)
}

// Rewrite returns the first successful rewrite of doc along the order for
// key. On any failure it returns doc unchanged with Fallback set and logs a
// warning; it never returns an error.
func (o *Orchestrator) Rewrite(ctx context.Context, doc, key string) *Outcome {
	start := time.Now()
	chain := o.Chain(key)

	result, err := chain.Rewrite(ctx, doc)
	if err != nil {
		logger.WarnContext(ctx, "rewrite unavailable, using cleaned document",
			"chain", chain.Name(),
			"error", err)
		return &Outcome{
			Text:     doc,
			Fallback: true,
			Err:      err,
			Duration: time.Since(start),
		}
	}

	text := result.Text
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	logger.InfoContext(ctx, "document rewritten",
		"provider", result.Provider,
		"model", result.Model,
		"duration", time.Since(start))
	return &Outcome{
		Text:     text,
		Provider: result.Provider,
		Model:    result.Model,
		Duration: time.Since(start),
	}
}
