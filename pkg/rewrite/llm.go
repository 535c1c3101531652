package rewrite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmylchreest/docrefine/internal/logger"
	"github.com/jmylchreest/docrefine/pkg/llm"
)

// LLMConfig holds request settings for an LLMRewriter.
type LLMConfig struct {
	MaxTokens   int
	Temperature float64
	// Timeout bounds a single backend call. Zero leaves it to the context.
	Timeout time.Duration
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		MaxTokens:   8192,
		Temperature: 0.2,
		Timeout:     30 * time.Second,
	}
}

// LLMRewriter rewrites documents with a single model backend.
type LLMRewriter struct {
	provider llm.Provider
	config   LLMConfig
}

// NewLLMRewriter creates a rewriter over provider.
func NewLLMRewriter(provider llm.Provider, cfg LLMConfig) *LLMRewriter {
	return &LLMRewriter{provider: provider, config: cfg}
}

// Rewrite sends the rewrite prompt for doc and returns the model's Markdown.
func (r *LLMRewriter) Rewrite(ctx context.Context, doc string) (*Result, error) {
	if !r.Available() {
		return nil, ErrNoRewriterAvailable
	}
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.provider.Execute(ctx, llm.Request{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: BuildPrompt(doc)}},
		MaxTokens:   r.config.MaxTokens,
		Temperature: r.config.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.Name(), err)
	}

	text := llm.StripCodeFence(resp.Content)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w", r.Name(), ErrEmptyResponse)
	}

	model := resp.Model
	if model == "" {
		model = r.provider.Model()
	}
	logger.Debug("rewrite complete",
		"provider", r.Name(),
		"model", model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"finish_reason", resp.FinishReason)

	return &Result{
		Text:     text,
		Provider: r.Name(),
		Model:    model,
		Usage:    resp.Usage,
		Duration: time.Since(start),
	}, nil
}

// Name returns the backend name.
func (r *LLMRewriter) Name() string {
	if r.provider == nil {
		return "llm"
	}
	return r.provider.Name()
}

// Available returns true when a backend is configured.
func (r *LLMRewriter) Available() bool {
	return r.provider != nil
}
