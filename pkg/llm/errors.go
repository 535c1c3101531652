package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// ErrUnknownProvider is returned by NewProvider for unregistered names.
var ErrUnknownProvider = errors.New("unknown provider")

// ErrNoChoices is returned when a backend answers without any content.
var ErrNoChoices = errors.New("no choices in response")

// APIError carries the HTTP status of a failed backend call.
type APIError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %v", e.Provider, e.StatusCode, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// wrapError attaches the provider name and, where the SDK exposes it, the
// HTTP status code to err.
func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	apiErr := &APIError{Provider: provider, Err: err}

	var oaErr *openai.Error
	var anErr *anthropic.Error
	switch {
	case errors.As(err, &oaErr):
		apiErr.StatusCode = oaErr.StatusCode
	case errors.As(err, &anErr):
		apiErr.StatusCode = anErr.StatusCode
	}
	return apiErr
}

// IsTransient reports whether err belongs to the retryable class: the
// service was unavailable, failed internally, or the call ran out of time.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}
