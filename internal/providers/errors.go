package providers

import (
	"context"
	"errors"
	"fmt"
)

// Error classification for completion calls. Transient errors are retried
// with backoff; auth and other client errors fail the page immediately.
var (
	// ErrTransient marks network failures, timeouts, rate limits, and 5xx
	// responses. Safe to retry.
	ErrTransient = errors.New("transient provider error")

	// ErrAuth marks 401/403 responses. Retrying cannot help.
	ErrAuth = errors.New("authentication failed")

	// ErrBadRequest marks other 4xx responses. Not retried.
	ErrBadRequest = errors.New("bad request")
)

// StatusError wraps an HTTP status from the completion endpoint with its
// retry class.
type StatusError struct {
	StatusCode int
	Body       string
	class      error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion endpoint returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return e.class
}

// newStatusError classifies an HTTP status code into the retry taxonomy.
func newStatusError(code int, body string) *StatusError {
	e := &StatusError{StatusCode: code, Body: body}
	switch {
	case code == 401 || code == 403:
		e.class = ErrAuth
	case code == 408 || code == 429 || code >= 500:
		e.class = ErrTransient
	default:
		e.class = ErrBadRequest
	}
	return e
}

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrBadRequest) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Non-status errors (network, timeouts, truncated bodies) are retried.
	return true
}
