package llm

import (
	"context"
	"time"
)

// LLMObserver receives notifications about model calls for observability.
//
// The observer is called after every call, whether successful or failed.
// Implementations should return quickly; they run on the caller's goroutine.
type LLMObserver interface {
	OnLLMCall(ctx context.Context, event LLMCallEvent)
}

// LLMCallEvent contains all information about a model call.
type LLMCallEvent struct {
	// Provider name (e.g., "anthropic", "openai", "openrouter")
	Provider string

	// Model used for the call (may differ from requested for auto-routing)
	Model string

	// Request details
	Request LLMCallRequest

	// Response details (nil if call failed before getting a response)
	Response *LLMCallResponse

	// Error if the call failed (nil on success)
	Error error

	// Duration of the call
	Duration time.Duration

	// Timestamp when the call started
	StartedAt time.Time
}

// LLMCallRequest summarises the request sent to the model.
type LLMCallRequest struct {
	Messages    int
	Images      int
	MaxTokens   int
	Temperature float64

	// InputContentSize is the total text size in bytes across messages.
	InputContentSize int
}

// LLMCallResponse summarises the model's answer.
type LLMCallResponse struct {
	ContentSize  int
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// ObserverFunc is a convenience type for using a function as an LLMObserver.
type ObserverFunc func(ctx context.Context, event LLMCallEvent)

// OnLLMCall implements LLMObserver.
func (f ObserverFunc) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	f(ctx, event)
}

// MultiObserver combines multiple observers into one.
type MultiObserver struct {
	observers []LLMObserver
}

// NewMultiObserver creates an observer that dispatches to multiple observers.
func NewMultiObserver(observers ...LLMObserver) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnLLMCall dispatches the event to all registered observers.
func (m *MultiObserver) OnLLMCall(ctx context.Context, event LLMCallEvent) {
	for _, obs := range m.observers {
		obs.OnLLMCall(ctx, event)
	}
}

// Add adds an observer to the multi-observer.
func (m *MultiObserver) Add(obs LLMObserver) {
	m.observers = append(m.observers, obs)
}

// ObservedProvider wraps a Provider and reports every Execute to an observer.
type ObservedProvider struct {
	Provider
	observer LLMObserver
}

// WithObserver wraps p so that obs sees each call. A nil observer returns p.
func WithObserver(p Provider, obs LLMObserver) Provider {
	if obs == nil || p == nil {
		return p
	}
	return &ObservedProvider{Provider: p, observer: obs}
}

// Execute forwards to the wrapped provider and emits one event.
func (o *ObservedProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := o.Provider.Execute(ctx, req)

	event := LLMCallEvent{
		Provider:  o.Name(),
		Model:     o.Model(),
		Request:   summariseRequest(req),
		Error:     err,
		Duration:  time.Since(start),
		StartedAt: start,
	}
	if resp != nil {
		if resp.Model != "" {
			event.Model = resp.Model
		}
		event.Response = &LLMCallResponse{
			ContentSize:  len(resp.Content),
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			FinishReason: resp.FinishReason,
		}
	}
	o.observer.OnLLMCall(ctx, event)

	return resp, err
}

func summariseRequest(req Request) LLMCallRequest {
	s := LLMCallRequest{
		Messages:    len(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		s.Images += len(m.Images)
		s.InputContentSize += len(m.Content)
	}
	return s
}
