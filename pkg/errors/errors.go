// Package errors defines the error taxonomy shared by the collector, its
// backends and the resilient request layer.
//
// Absence of content is not an error: a missing post, user or subreddit is
// reported as a nil result so callers can tell "no such content" apart from
// "the fetch failed".
//
// Fatal errors (ConfigError, AuthError) end a batch operation. Everything
// else is per-item and batch helpers log it and move on.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// describe joins the non-empty parts of an error under a prefix.
func describe(prefix string, parts ...string) string {
	var b strings.Builder
	b.WriteString(prefix)
	sep := ": "
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(p)
		sep = ", "
	}
	return b.String()
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ConfigError rejects a configuration value or a request parameter before
// any network traffic happens.
type ConfigError struct {
	// Field names the offending setting or parameter, e.g. "subreddit".
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return describe("invalid configuration", e.Message)
	}
	return describe("invalid "+e.Field, e.Message)
}

// AuthError is an authentication failure. Retrying with the same credentials
// cannot succeed.
type AuthError struct {
	StatusCode int
	Message    string
	// Body is the response body of a failed token exchange, if any.
	Body string
	Err  error
}

func (e *AuthError) Error() string {
	var status, body string
	if e.StatusCode > 0 {
		status = fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	if e.Body != "" {
		body = fmt.Sprintf("body %q", e.Body)
	}
	return describe("authentication failed", e.Message, status, body, causeText(e.Err))
}

func (e *AuthError) Unwrap() error { return e.Err }

// RequestError is a transport failure: the request never produced a usable
// HTTP response.
type RequestError struct {
	Operation string
	URL       string
	Message   string
	Err       error
}

func (e *RequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = causeText(e.Err)
	}
	return describe(strings.TrimSpace("request "+e.Operation+" "+e.URL)+" failed", msg)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ParseError reports a payload that decoded as JSON but could not be
// normalized into records.
type ParseError struct {
	// Operation is the record kind being normalized, e.g. "posts".
	Operation string
	Message   string
	Err       error
}

func (e *ParseError) Error() string {
	prefix := "cannot parse response"
	if e.Operation != "" {
		prefix = "cannot parse " + e.Operation
	}
	if e.Message == "" {
		return describe(prefix, causeText(e.Err))
	}
	return describe(prefix, e.Message, causeText(e.Err))
}

func (e *ParseError) Unwrap() error { return e.Err }

// APIError is a non-success HTTP status from Reddit.
type APIError struct {
	StatusCode int
	// ErrorCode is Reddit's symbolic reason, e.g. SUBREDDIT_NOEXIST.
	ErrorCode string
	Message   string
}

func (e *APIError) Error() string {
	prefix := fmt.Sprintf("reddit returned HTTP %d", e.StatusCode)
	if e.ErrorCode != "" {
		prefix += " (" + e.ErrorCode + ")"
	}
	return describe(prefix, e.Message)
}

// ClientError wraps a failure inside the local HTTP machinery: building a
// request, dialing or reading a body.
type ClientError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ClientError) Error() string {
	if e.Operation == "" && e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	prefix := "client error"
	if e.Operation != "" {
		prefix = e.Operation + " failed"
	}
	return describe(prefix, e.Message, causeText(e.Err))
}

func (e *ClientError) Unwrap() error { return e.Err }

// RateLimitError reports that Reddit refused a request for capacity reasons.
// The resilient layer recovers from it; it only reaches callers wrapped in a
// RequestFailedError once the retry budget is spent.
type RateLimitError struct {
	// RetryAfter is the server-provided wait, zero when absent.
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	var wait string
	if e.RetryAfter > 0 {
		wait = "retry after " + e.RetryAfter.String()
	}
	return describe("rate limited", wait, e.Message)
}

// MalformedResponseError reports a payload that does not look like a Reddit
// response.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return describe("malformed response", e.Reason)
}

// RequestFailedError is returned once every attempt allowed by the retry
// policy has failed.
type RequestFailedError struct {
	Attempts int
	// Err is the cause of the last failed attempt.
	Err error
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }
