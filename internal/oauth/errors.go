package oauth

import (
	"fmt"
	"time"
)

// RateLimitError is returned for HTTP 429 responses.
type RateLimitError struct {
	// RetryAfter is the wait requested by the server, zero when absent.
	RetryAfter time.Duration
	// Body holds the start of the response body.
	Body string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("oauth: rate limited, retry after %s", e.RetryAfter)
	}
	return "oauth: rate limited"
}

// APIError represents any other non-success response.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oauth: unexpected response %s", e.Status)
}
