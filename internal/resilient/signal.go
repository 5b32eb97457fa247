package resilient

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
)

// Kind classifies the outcome of one failed attempt.
type Kind int

const (
	// Transient covers 5xx responses and transport failures.
	Transient Kind = iota
	// RateLimited covers HTTP 429 and vendor rate-limit errors.
	RateLimited
	// NotFound ends the call with no result.
	NotFound
	// Forbidden triggers the one-shot alternate profile on the first attempt.
	Forbidden
	// Malformed is a payload that failed shape validation.
	Malformed
	// Fatal is returned to the caller immediately.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	case NotFound:
		return "not_found"
	case Forbidden:
		return "forbidden"
	case Malformed:
		return "malformed"
	case Fatal:
		return "fatal"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Signal is the error a thunk returns to tell the Client how to proceed.
// Backends translate their own transport errors into a Signal; any other
// error is treated as Transient.
type Signal struct {
	Kind Kind
	// RetryAfter is the server-requested wait for RateLimited, zero if none.
	RetryAfter time.Duration
	// BotSuspected widens the rate-limit back-off.
	BotSuspected bool
	// Status is the HTTP status that produced the signal, if any.
	Status int
	Err    error
}

func (s *Signal) Error() string {
	msg := s.Kind.String()
	if s.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", s.Status)
	}
	if s.Err != nil {
		msg += ": " + s.Err.Error()
	}
	return msg
}

func (s *Signal) Unwrap() error {
	return s.Err
}

// cause is what callers see once the signal escapes the retry loop.
func (s *Signal) cause() error {
	if s.Err != nil {
		return s.Err
	}
	return s
}

// NewSignal wraps err with kind.
func NewSignal(kind Kind, err error) *Signal {
	return &Signal{Kind: kind, Err: err}
}

var botMarkers = [][]byte{[]byte("captcha"), []byte("bot"), []byte("blocked")}

// StatusSignal classifies an HTTP response. It returns nil for 2xx and 3xx.
// now anchors HTTP-date Retry-After values.
func StatusSignal(code int, header http.Header, body []byte, now time.Time) *Signal {
	switch {
	case code < 400:
		return nil
	case code == http.StatusTooManyRequests:
		s := &Signal{Kind: RateLimited, Status: code}
		if header != nil {
			s.RetryAfter = ParseRetryAfter(header.Get("Retry-After"), now)
		}
		lower := bytes.ToLower(body)
		for _, m := range botMarkers {
			if bytes.Contains(lower, m) {
				s.BotSuspected = true
				break
			}
		}
		s.Err = &pkgerrs.RateLimitError{RetryAfter: s.RetryAfter, Message: snippet(body)}
		return s
	case code == http.StatusNotFound:
		return &Signal{Kind: NotFound, Status: code, Err: &pkgerrs.APIError{StatusCode: code, Message: "not found"}}
	case code == http.StatusForbidden:
		return &Signal{Kind: Forbidden, Status: code, Err: &pkgerrs.APIError{StatusCode: code, Message: snippet(body)}}
	case code == http.StatusUnauthorized:
		return &Signal{Kind: Fatal, Status: code, Err: &pkgerrs.AuthError{StatusCode: code, Body: snippet(body)}}
	case code >= 500:
		return &Signal{Kind: Transient, Status: code, Err: &pkgerrs.APIError{StatusCode: code, Message: snippet(body)}}
	}
	// Remaining 4xx responses will not improve on retry.
	return &Signal{Kind: Fatal, Status: code, Err: &pkgerrs.APIError{StatusCode: code, Message: snippet(body)}}
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// MaxRetryAfter caps server-requested waits.
const MaxRetryAfter = time.Hour

// ParseRetryAfter parses a Retry-After header value given either as seconds
// or as an HTTP date. It returns 0 if the value is absent or unparseable, and
// never more than MaxRetryAfter.
func ParseRetryAfter(val string, now time.Time) time.Duration {
	val = strings.TrimSpace(val)
	if val == "" {
		return 0
	}

	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		if secs <= 0 || math.IsNaN(secs) {
			return 0
		}
		if secs >= MaxRetryAfter.Seconds() {
			return MaxRetryAfter
		}
		return time.Duration(math.Ceil(secs)) * time.Second
	}

	for _, layout := range []string{time.RFC1123, time.RFC850, time.ANSIC} {
		if t, err := time.Parse(layout, val); err == nil {
			if d := t.Sub(now); d > 0 {
				return min(d, MaxRetryAfter)
			}
			return 0
		}
	}
	return 0
}
