package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"
)

const OpenAICompatName = "openai-compat"

// OpenAICompatConfig holds configuration for the OpenAI-compatible client.
// Any endpoint speaking the /chat/completions wire format works: OpenAI,
// OpenRouter, Ollama behind a proxy, vLLM, etc.
type OpenAICompatConfig struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration

	// Retry policy for transient failures
	MaxRetries int           // Max attempts (default: 3)
	RetryDelay time.Duration // Base delay between retries (default: 1s)
}

// OpenAICompatClient implements CompletionClient against an
// OpenAI-compatible chat completions endpoint.
type OpenAICompatClient struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenAICompatClient creates a new client.
func NewOpenAICompatClient(cfg OpenAICompatConfig) *OpenAICompatClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &OpenAICompatClient{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *OpenAICompatClient) Name() string {
	return OpenAICompatName
}

// Chat sends a chat completion request.
func (c *OpenAICompatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	wireReq := chatCompletionRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	for _, m := range req.Messages {
		msg := chatMessage{Role: m.Role}

		// Vision messages carry text plus image parts
		if len(m.Images) > 0 {
			content := []contentPart{
				{Type: "text", Text: m.Content},
			}
			for _, img := range m.Images {
				content = append(content, contentPart{
					Type: "image_url",
					ImageURL: &imageURL{
						URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
					},
				})
			}
			msg.Content = content
		} else {
			msg.Content = m.Content
		}

		wireReq.Messages = append(wireReq.Messages, msg)
	}

	var (
		resp     *chatCompletionResponse
		attempts int
	)
	err := retry.Do(
		func() error {
			attempts++
			var err error
			resp, err = c.doRequest(ctx, &wireReq)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(10*time.Second),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsRetryable),
	)

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAICompatName,
		Attempts:  attempts,
	}

	if err != nil {
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	if len(resp.Choices) == 0 {
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("no choices in response")
	}

	content := ""
	if resp.Choices[0].Message.Content != nil {
		switch v := resp.Choices[0].Message.Content.(type) {
		case string:
			content = v
		default:
			b, mErr := json.Marshal(v)
			if mErr != nil {
				result.ExecutionTime = time.Since(start)
				return result, fmt.Errorf("failed to marshal content: %w", mErr)
			}
			content = string(b)
		}
	}

	result.Content = content
	result.ModelUsed = resp.Model
	result.PromptTokens = resp.Usage.PromptTokens
	result.CompletionTokens = resp.Usage.CompletionTokens
	result.TotalTokens = resp.Usage.TotalTokens
	result.ExecutionTime = time.Since(start)

	return result, nil
}

// doRequest performs a single HTTP round trip. Errors are classified via
// StatusError so the retry policy can distinguish transient failures from
// auth/client errors.
func (c *OpenAICompatClient) doRequest(ctx context.Context, body *chatCompletionRequest) (*chatCompletionResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode, string(respBody))
	}

	var out chatCompletionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &out, nil
}

// Wire types for the chat completions format.

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []contentPart
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Verify interface
var _ CompletionClient = (*OpenAICompatClient)(nil)
