// Package llm provides the chat collaborator interface and its
// implementations for the portfolio assistant.
package llm

import (
	"context"
	"errors"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant
	Content string `json:"content"`
}

// CompletionRequest holds parameters for an LLM completion.
type CompletionRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"` // sent as the leading system entry
}

// CompletionResponse holds the LLM's response.
type CompletionResponse struct {
	Content      string `json:"content"`
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	StopReason   string `json:"stop_reason"`
}

// Provider is the interface for LLM providers.
type Provider interface {
	// Name returns the provider identifier (e.g., "zai", "anthropic").
	Name() string

	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ErrNoProvider is returned when no chat provider is configured.
var ErrNoProvider = &ProviderError{Message: "no chat provider configured"}

// ProviderError represents an LLM provider error.
type ProviderError struct {
	Message    string
	StatusCode int
	Provider   string
}

func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return e.Provider + ": " + e.Message
	}
	return e.Message
}

// IsNoProvider reports whether err means the provider is not configured.
func IsNoProvider(err error) bool {
	return errors.Is(err, ErrNoProvider)
}

// Unconfigured is a Provider that always fails with ErrNoProvider. The
// daemon installs it when no API key is set so the conversation can tell
// the visitor what is wrong.
type Unconfigured struct{}

func (Unconfigured) Name() string { return "unconfigured" }

func (Unconfigured) Complete(context.Context, CompletionRequest) (*CompletionResponse, error) {
	return nil, ErrNoProvider
}
