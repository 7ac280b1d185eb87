package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a CompletionClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailWith     error // Error to return when failing (default: a transient error)
	FailAfter    int   // Fail after N requests (0 = never)
	ResponseText string

	// RespondFunc, if set, overrides ResponseText and computes the reply
	// from the request. Useful for per-page responses and latency games.
	RespondFunc func(req *ChatRequest) (string, error)

	// State
	requestCount atomic.Int64

	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      time.Millisecond,
		ResponseText: `[{"type":"paragraph","content":"mock response"}]`,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.inFlight++
	if c.inFlight > c.maxSeen {
		c.maxSeen = c.inFlight
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight--
		c.mu.Unlock()
	}()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	failErr := c.FailWith
	if failErr == nil {
		failErr = fmt.Errorf("%w: mock client configured to fail", ErrTransient)
	}
	if c.ShouldFail {
		result.ExecutionTime = time.Since(start)
		return result, failErr
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		result.ExecutionTime = time.Since(start)
		return result, failErr
	}

	// Simulate latency
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ExecutionTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	text := c.ResponseText
	if c.RespondFunc != nil {
		var err error
		text, err = c.RespondFunc(req)
		if err != nil {
			result.ExecutionTime = time.Since(start)
			return result, err
		}
	}

	result.Content = text
	result.ExecutionTime = time.Since(start)

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4 // Rough estimate
	}
	result.PromptTokens = promptTokens
	result.CompletionTokens = len(text) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// MaxConcurrent returns the highest number of simultaneous in-flight
// requests observed.
func (c *MockClient) MaxConcurrent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxSeen
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.inFlight = 0
	c.maxSeen = 0
	c.mu.Unlock()
}

// Verify interface
var _ CompletionClient = (*MockClient)(nil)
