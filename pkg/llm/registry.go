package llm

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// ProviderFactory creates providers from config.
type ProviderFactory func(cfg ProviderConfig) (Provider, error)

// DefaultModels maps provider names to their default models. Every default is
// vision capable so the same backend can serve classification and rewrite.
var DefaultModels = map[string]string{
	"anthropic":  "claude-sonnet-4-20250514",
	"openai":     "gpt-4o",
	"openrouter": "openrouter/auto",
	"gemini":     "gemini-2.0-flash",
	"ollama":     "llava",
}

// DefaultFallbackOrder is the priority in which rewrite backends are tried
// when no policy names another order.
var DefaultFallbackOrder = []string{"openrouter", "anthropic", "openai", "gemini", "ollama"}

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func init() {
	RegisterProvider("anthropic", func(cfg ProviderConfig) (Provider, error) {
		return NewAnthropicProvider(cfg)
	})
	RegisterProvider("openai", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg)
	})
	RegisterProvider("openrouter", func(cfg ProviderConfig) (Provider, error) {
		return NewOpenRouterProvider(cfg)
	})
	RegisterProvider("gemini", func(cfg ProviderConfig) (Provider, error) {
		return NewGeminiProvider(cfg)
	})
	RegisterProvider("ollama", func(cfg ProviderConfig) (Provider, error) {
		return NewOllamaProvider(cfg)
	})
}

// NewProvider creates a provider by name.
func NewProvider(name string, cfg ProviderConfig) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownProvider, name, strings.Join(AvailableProviders(), ", "))
	}
	return factory(cfg)
}

// RegisterProvider adds a custom provider factory.
func RegisterProvider(name string, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// AvailableProviders returns the sorted list of registered providers.
func AvailableProviders() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	providers := make([]string, 0, len(registry))
	for name := range registry {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

// IsRegistered returns true if a provider is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

// GetDefaultModel returns the default model for a provider.
func GetDefaultModel(provider string) string {
	return DefaultModels[provider]
}

// providerEnvKeys maps provider names to their API key environment variables,
// in lookup order.
var providerEnvKeys = map[string][]string{
	"openrouter": {"OPENROUTER_API_KEY"},
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"openai":     {"OPENAI_API_KEY"},
	"gemini":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// RequiresAPIKey reports whether the provider needs a key to be usable.
func RequiresAPIKey(provider string) bool {
	_, ok := providerEnvKeys[provider]
	return ok
}

// APIKeyFromEnv returns the first non-empty API key environment variable for
// the provider, or "" when none is set.
func APIKeyFromEnv(provider string) string {
	for _, env := range providerEnvKeys[provider] {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return ""
}

// DetectProvider returns the first provider in DefaultFallbackOrder that has
// an API key in the environment, falling back to ollama which needs none.
func DetectProvider() (provider string, apiKey string) {
	for _, name := range DefaultFallbackOrder {
		if !RequiresAPIKey(name) {
			continue
		}
		if key := APIKeyFromEnv(name); key != "" {
			return name, key
		}
	}
	return "ollama", ""
}
