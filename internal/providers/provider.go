// Package providers contains the completion-endpoint client used by the
// correction stage: the CompletionClient interface, an OpenAI-compatible
// HTTP implementation, a token-bucket rate limiter, and a mock for tests.
package providers

import (
	"context"
	"time"
)

// CompletionClient is the interface the correction stage talks to.
// Implementations block until the endpoint responds or ctx is done.
type CompletionClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "openai-compat").
	Name() string
}

// Message represents a chat message.
type Message struct {
	Role    string   `json:"role"` // "system", "user", "assistant"
	Content string   `json:"content"`
	Images  [][]byte `json:"-"` // For vision models (base64 encoded in request)
}

// ChatRequest is a request to the completion endpoint.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	// Generation parameters
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	// Request tracking
	RequestID string `json:"-"`
}

// ChatResult is the complete response from a completion call.
type ChatResult struct {
	Content string `json:"content"`

	// Token counts
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Timing
	ExecutionTime time.Duration `json:"execution_time"`

	// Provider info
	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`

	// Request tracking
	RequestID string `json:"request_id"`
	Attempts  int    `json:"attempts"`
}
