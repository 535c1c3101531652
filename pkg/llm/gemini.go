package llm

import "fmt"

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewGeminiProvider creates a provider for Google Gemini through its
// OpenAI-compatible endpoint.
func NewGeminiProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModels["gemini"]
	}
	return newOpenAICompatible("gemini", cfg), nil
}
