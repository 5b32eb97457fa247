package oauth

import (
	"cmp"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
)

// TokenProvider hands out bearer tokens.
type TokenProvider interface {
	GetToken(ctx context.Context) (string, error)
}

// RateLimitConfig controls how requests are throttled before reaching Reddit.
type RateLimitConfig struct {
	// RequestsPerMinute caps steady-state throughput. Defaults to 60 if zero.
	RequestsPerMinute float64
	// Burst allows short spikes above the steady-state rate. Defaults to 10 if zero.
	Burst int
}

const (
	DefaultRequestsPerMinute = 60
	DefaultRateLimitBurst    = 10

	maxResponseBytes = 16 << 20
	errorBodyPreview = 512
	maxHeaderWait    = time.Hour
)

// Client sends authenticated requests to the OAuth API host.
type Client struct {
	client    *http.Client
	BaseURL   *url.URL
	UserAgent string
	auth      TokenProvider
	logger    *slog.Logger
	now       func() time.Time

	limiter *rate.Limiter
	quota   quota
}

// NewClient returns an API client resolving paths against baseURL.
// If a nil httpClient is provided, http.DefaultClient will be used.
func NewClient(httpClient *http.Client, auth TokenProvider, baseURL, userAgent string, rateCfg *RateLimitConfig, logger *slog.Logger) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "parse base URL", Err: err}
	}
	if !strings.HasSuffix(parsedURL.Path, "/") {
		parsedURL.Path += "/"
	}

	if rateCfg == nil {
		rateCfg = &RateLimitConfig{}
	}

	return &Client{
		client:    httpClient,
		BaseURL:   parsedURL,
		UserAgent: userAgent,
		auth:      auth,
		logger:    logger,
		now:       time.Now,
		limiter:   buildLimiter(*rateCfg),
	}, nil
}

// Get performs an authenticated GET and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	u, err := c.BaseURL.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "build request", Err: err}
	}
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("raw_json", "1")
	u.RawQuery = q.Encode()

	token, err := c.auth.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.UserAgent)

	return c.do(req)
}

func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	if err := c.throttle(req.Context()); err != nil {
		return nil, err
	}

	start := c.now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "GET " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	c.quota.observe(resp.Header, c.now())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &pkgerrs.ClientError{Operation: "read response", Err: err}
	}

	c.logger.Debug("oauth request",
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", c.now().Sub(start)),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{
			RetryAfter: retryAfter(resp.Header),
			Body:       preview(body),
		}
	case resp.StatusCode == http.StatusUnauthorized:
		if inv, ok := c.auth.(interface{ Invalidate() }); ok {
			inv.Invalidate()
		}
		return nil, &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: preview(body), Message: "token rejected"}
	default:
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: preview(body)}
	}
}

func preview(body []byte) string {
	if len(body) > errorBodyPreview {
		body = body[:errorBodyPreview]
	}
	return string(body)
}

// headerSeconds reads a seconds-valued header, capped at maxHeaderWait.
func headerSeconds(h http.Header, key string) (time.Duration, bool) {
	v, err := strconv.ParseFloat(h.Get(key), 64)
	if err != nil || v < 0 || math.IsNaN(v) {
		return 0, false
	}
	if v >= maxHeaderWait.Seconds() {
		return maxHeaderWait, true
	}
	return time.Duration(v * float64(time.Second)), true
}

func retryAfter(h http.Header) time.Duration {
	d, _ := headerSeconds(h, "Retry-After")
	return d
}

func buildLimiter(cfg RateLimitConfig) *rate.Limiter {
	perMinute := cmp.Or(max(cfg.RequestsPerMinute, 0), DefaultRequestsPerMinute)
	burst := cmp.Or(max(cfg.Burst, 0), DefaultRateLimitBurst)
	return rate.NewLimiter(rate.Limit(perMinute/60), burst)
}

// quota mirrors Reddit's X-Ratelimit-* accounting. When the window is spent,
// or the server sends Retry-After, it holds every request until the stated
// instant.
type quota struct {
	mu        sync.Mutex
	holdUntil time.Time
}

func (q *quota) observe(h http.Header, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if d := retryAfter(h); d > 0 {
		q.holdLocked(now.Add(d))
	}
	remaining, err := strconv.ParseFloat(h.Get("X-Ratelimit-Remaining"), 64)
	reset, ok := headerSeconds(h, "X-Ratelimit-Reset")
	if err != nil || !ok || reset == 0 {
		return
	}
	if remaining <= 1 {
		q.holdLocked(now.Add(reset))
	}
}

func (q *quota) hold(until time.Time) {
	q.mu.Lock()
	q.holdLocked(until)
	q.mu.Unlock()
}

func (q *quota) holdLocked(until time.Time) {
	if until.After(q.holdUntil) {
		q.holdUntil = until
	}
}

func (q *quota) until() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.holdUntil
}

// throttle blocks until the quota hold has passed and the local limiter
// grants a token.
func (c *Client) throttle(ctx context.Context) error {
	for {
		wait := c.quota.until().Sub(c.now())
		if wait <= 0 {
			break
		}
		c.logger.Debug("oauth quota exhausted, holding", slog.Duration("wait", wait))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return c.limiter.Wait(ctx)
}

// DeferredUntil reports the instant before which no request will be sent,
// or zero when requests may go out now.
func (c *Client) DeferredUntil() time.Time {
	until := c.quota.until()
	if !until.After(c.now()) {
		return time.Time{}
	}
	return until
}
