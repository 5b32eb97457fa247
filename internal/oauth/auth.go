package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
)

const (
	defaultTokenEndpointPath = "api/v1/access_token"

	// Tokens are renewed this long before Reddit says they expire.
	tokenExpiryMargin = time.Minute
)

// Grant types understood by the token endpoint.
const (
	GrantClientCredentials = "client_credentials"
	GrantPassword          = "password"
)

// Authenticator exchanges app credentials for bearer tokens and caches the
// token until shortly before it expires.
type Authenticator struct {
	client       *http.Client
	clientID     string
	clientSecret string
	userAgent    string
	tokenURL     *url.URL
	form         url.Values
	now          func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewAuthenticator builds an Authenticator. A password grant is used when both
// username and password are set, otherwise the read-only client_credentials
// grant.
func NewAuthenticator(httpClient *http.Client, username, password, clientID, clientSecret, userAgent, authURL string) (*Authenticator, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		return nil, &pkgerrs.AuthError{Message: "invalid auth URL", Err: err}
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	tokenURL, err := parsed.Parse(defaultTokenEndpointPath)
	if err != nil {
		return nil, &pkgerrs.AuthError{Message: "invalid token endpoint", Err: err}
	}

	form := url.Values{}
	if username != "" && password != "" {
		form.Set("grant_type", GrantPassword)
		form.Set("username", username)
		form.Set("password", password)
	} else {
		form.Set("grant_type", GrantClientCredentials)
	}

	return &Authenticator{
		client:       httpClient,
		clientID:     clientID,
		clientSecret: clientSecret,
		userAgent:    userAgent,
		tokenURL:     tokenURL,
		form:         form,
		now:          time.Now,
	}, nil
}

// GrantType reports which OAuth grant the authenticator performs.
func (a *Authenticator) GrantType() string {
	return a.form.Get("grant_type")
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
}

// GetToken returns a cached token or fetches a new one.
func (a *Authenticator) GetToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && a.now().Before(a.expires) {
		return a.token, nil
	}
	tok, err := a.exchange(ctx)
	if err != nil {
		return "", err
	}

	ttl := time.Duration(tok.ExpiresIn) * time.Second
	if ttl > tokenExpiryMargin {
		ttl -= tokenExpiryMargin
	}
	a.token, a.expires = tok.AccessToken, a.now().Add(ttl)
	return a.token, nil
}

// exchange posts the grant form to the token endpoint. Only a rejection of
// the credentials is an AuthError. Transport failures and server errors come
// back as RequestError or APIError so callers can retry them.
func (a *Authenticator) exchange(ctx context.Context) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL.String(), strings.NewReader(a.form.Encode()))
	if err != nil {
		return nil, &pkgerrs.AuthError{Message: "building token request", Err: err}
	}
	req.SetBasicAuth(a.clientID, a.clientSecret)
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &pkgerrs.RequestError{Operation: http.MethodPost, URL: a.tokenURL.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreview*8))
	switch {
	case err != nil:
		return nil, &pkgerrs.RequestError{Operation: http.MethodPost, URL: a.tokenURL.Path, Message: "reading token response", Err: err}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: retryAfter(resp.Header), Body: preview(body)}
	case resp.StatusCode >= 500:
		return nil, &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: preview(body)}
	}

	fail := &pkgerrs.AuthError{StatusCode: resp.StatusCode, Body: preview(body)}
	if resp.StatusCode != http.StatusOK {
		fail.Message = "token request rejected"
		return nil, fail
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		// An HTML page in place of JSON is a proxy or outage page.
		return nil, &pkgerrs.RequestError{Operation: http.MethodPost, URL: a.tokenURL.Path, Message: "token response is not JSON", Err: err}
	}
	// Bad user credentials come back as 200 with an error member.
	switch {
	case tok.Error != "":
		fail.Message, fail.Body = tok.Error, ""
		return nil, fail
	case tok.AccessToken == "":
		fail.Message = "token response carried no access_token"
		return nil, fail
	}
	return &tok, nil
}

// Invalidate drops the cached token so the next call fetches a new one.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.token = ""
	a.expires = time.Time{}
	a.mu.Unlock()
}
