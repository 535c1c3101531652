package llm

import (
	"fmt"

	"github.com/openai/openai-go/option"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// NewOpenRouterProvider creates a provider for OpenRouter, which exposes an
// OpenAI-compatible chat completions endpoint.
func NewOpenRouterProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels["openrouter"]
	}

	var extra []option.RequestOption
	if cfg.HTTPReferer != "" {
		extra = append(extra, option.WithHeader("HTTP-Referer", cfg.HTTPReferer))
	}
	if cfg.AppTitle != "" {
		extra = append(extra, option.WithHeader("X-Title", cfg.AppTitle))
	}

	return newOpenAICompatible("openrouter", cfg, extra...), nil
}
