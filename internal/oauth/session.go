// Package oauth is a small binding for Reddit's authenticated API. It
// handles the token exchange, throttles itself from Reddit's rate-limit
// headers and exposes subreddits, redditors, submissions and comments as
// typed wire objects.
//
// Basic usage:
//
//	s, err := oauth.New(&oauth.Config{
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		UserAgent:    "myapp/1.0 by /u/yourusername",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	links, err := s.Subreddit("golang").Hot(ctx, 25)
package oauth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jamesprial/go-reddit-collector/internal/normalize"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
	"github.com/jamesprial/go-reddit-collector/pkg/validation"
)

const (
	// DefaultBaseURL is the authenticated API host.
	DefaultBaseURL = "https://oauth.reddit.com/"
	// DefaultAuthURL is the host serving the token endpoint.
	DefaultAuthURL = "https://www.reddit.com/"
	// DefaultUserAgent is sent when the config names none.
	DefaultUserAgent = "go-reddit-collector/0.1"
	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second
)

// Config holds the session credentials and transport settings.
//
// For read-only access provide ClientID and ClientSecret. Username and
// Password additionally switch to the password grant.
type Config struct {
	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// UserAgent should follow "platform:app-name:version by /u/username".
	UserAgent string

	// BaseURL and AuthURL default to DefaultBaseURL and DefaultAuthURL.
	BaseURL string
	AuthURL string

	HTTPClient *http.Client
	RateLimit  *RateLimitConfig
	Logger     *slog.Logger
}

// Session is an authenticated connection to the API.
type Session struct {
	auth   *Authenticator
	client *Client
	logger *slog.Logger
}

// New validates cfg and prepares a session. No request is made until
// Connect or the first API call.
func New(cfg *Config) (*Session, error) {
	if cfg == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, &pkgerrs.ConfigError{Field: "ClientID", Message: "ClientID and ClientSecret are required"}
	}

	c := *cfg
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if err := validation.ValidateUserAgent(c.UserAgent); err != nil {
		return nil, err
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}

	auth, err := NewAuthenticator(c.HTTPClient, c.Username, c.Password, c.ClientID, c.ClientSecret, c.UserAgent, c.AuthURL)
	if err != nil {
		return nil, err
	}
	client, err := NewClient(c.HTTPClient, auth, c.BaseURL, c.UserAgent, c.RateLimit, c.Logger)
	if err != nil {
		return nil, err
	}

	return &Session{auth: auth, client: client, logger: c.Logger}, nil
}

// Connect makes sure the session holds a valid token. While the cached token
// is fresh it returns without talking to Reddit. A failed exchange is not
// remembered; the next call tries again.
func (s *Session) Connect(ctx context.Context) error {
	if _, err := s.auth.GetToken(ctx); err != nil {
		return err
	}
	s.logger.Debug("oauth session ready", slog.String("grant", s.auth.GrantType()))
	return nil
}

// UserAuth reports whether the session acts as a user.
func (s *Session) UserAuth() bool {
	return s.auth.GrantType() == GrantPassword
}

// DeferredUntil reports when the session's own throttle releases the next
// request.
func (s *Session) DeferredUntil() time.Time {
	return s.client.DeferredUntil()
}

// Me returns the account behind a user-auth session.
func (s *Session) Me(ctx context.Context) (*types.AccountData, error) {
	raw, err := s.client.Get(ctx, "api/v1/me", nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(raw)
}

// Search runs a site-wide search.
func (s *Session) Search(ctx context.Context, query, sort, timeFilter string, limit int) ([]*types.LinkData, error) {
	return s.links(ctx, "search", searchQuery(query, sort, timeFilter, limit, false))
}

func (s *Session) links(ctx context.Context, path string, q url.Values) ([]*types.LinkData, error) {
	raw, err := s.client.Get(ctx, path, q)
	if err != nil {
		return nil, err
	}
	things, err := normalize.Things(raw)
	if err != nil {
		return nil, &pkgerrs.ParseError{Operation: path, Err: err}
	}
	return normalize.ExtractLinks(things), nil
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(validation.ClampLimit(limit)))
	return q
}

func searchQuery(query, sort, timeFilter string, limit int, restrict bool) url.Values {
	q := limitQuery(limit)
	q.Set("q", query)
	if sort != "" {
		q.Set("sort", sort)
	}
	if timeFilter != "" {
		q.Set("t", timeFilter)
	}
	if restrict {
		q.Set("restrict_sr", "on")
	}
	return q
}

func decodeAccount(raw json.RawMessage) (*types.AccountData, error) {
	things, err := normalize.Things(raw)
	if err != nil || len(things) == 0 {
		return nil, &pkgerrs.ParseError{Operation: "account", Message: "no account in response", Err: err}
	}
	return normalize.ParseAccount(things[0])
}
