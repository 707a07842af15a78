package providers

import (
	"context"
	"fmt"
)

// Message is one entry in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse is the parsed reply from a completion provider.
type CompletionResponse struct {
	Content      string
	FinishReason string
}

// LLMProvider is the contract for an OpenAI-compatible completion
// backend. Chat blocks for the network round trip; callers bound it
// with the request context.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, model string) (*CompletionResponse, error)
	GetDefaultModel() string
}

// APIError is a non-2xx response from the completion API, kept typed
// so callers can classify auth failures apart from transient ones.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed: status=%d error=%s", e.Provider, e.StatusCode, e.Message)
}
