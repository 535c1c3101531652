// Package llm provides a unified interface for the language and vision model
// backends used by the rewrite and classification stages.
package llm

import (
	"context"
	"encoding/base64"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Image is an inline image attached to a user message.
type Image struct {
	MIMEType string
	Data     []byte
}

// Base64 returns the image bytes encoded with standard base64.
func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL for OpenAI-compatible APIs.
func (i Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
	// Images are sent alongside Content. Only honoured on user messages.
	Images []Image
}

// Request represents a completion request to the model.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSONMode asks the backend to return a JSON object when it supports it.
	JSONMode bool
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response represents the result of a model execution.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string // Actual model used (may differ from requested for auto-routing)
	Duration     time.Duration
}

// Provider is the core interface that all model backends must implement.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "openrouter", "anthropic").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries is the SDK-level retry count. Callers that own their own
	// retry policy leave this at zero.
	MaxRetries int
	Timeout    time.Duration
	// HTTPReferer and AppTitle for OpenRouter attribution
	HTTPReferer string
	AppTitle    string
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout: 120 * time.Second,
	}
}
