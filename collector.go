package collector

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jamesprial/go-reddit-collector/internal/normalize"
	"github.com/jamesprial/go-reddit-collector/internal/oauth"
	"github.com/jamesprial/go-reddit-collector/internal/official"
	"github.com/jamesprial/go-reddit-collector/internal/resilient"
	"github.com/jamesprial/go-reddit-collector/internal/scrape"
	"github.com/jamesprial/go-reddit-collector/internal/useragent"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// BackendKind selects how data is fetched.
type BackendKind string

const (
	// BackendPublic reads Reddit's public JSON endpoints without credentials.
	BackendPublic BackendKind = "public"
	// BackendOfficial uses the OAuth API and needs a registered script app.
	BackendOfficial BackendKind = "official"
)

// Backend is implemented by both data sources. Every method returns
// canonical records; a nil record or empty slice with a nil error means the
// resource does not exist or could not be read.
type Backend interface {
	Name() string
	SubredditPosts(ctx context.Context, req types.PostsRequest) ([]types.Post, error)
	Subreddit(ctx context.Context, name string) (*types.Subreddit, error)
	User(ctx context.Context, name string) (*types.User, error)
	Thread(ctx context.Context, postID string, commentLimit int) (*types.Thread, error)
	Comment(ctx context.Context, commentID string) (*types.Comment, error)
	Search(ctx context.Context, req types.SearchRequest) ([]types.Post, error)
	UserPosts(ctx context.Context, req types.UserListingRequest) ([]types.Post, error)
	UserComments(ctx context.Context, req types.UserListingRequest) ([]types.Comment, error)
}

var (
	_ Backend = (*scrape.Backend)(nil)
	_ Backend = (*official.Backend)(nil)
)

// Config holds the collector configuration.
//
// The public backend needs nothing. The official backend needs ClientID and
// ClientSecret; adding Username and Password switches it to user
// authentication:
//
//	cfg := &collector.Config{
//		Backend:      collector.BackendOfficial,
//		ClientID:     "your-client-id",
//		ClientSecret: "your-client-secret",
//		UserAgent:    "script:research-collector:1.0 by /u/yourname",
//	}
type Config struct {
	// Backend defaults to BackendPublic.
	Backend BackendKind

	ClientID     string
	ClientSecret string
	Username     string
	Password     string

	// UserAgent identifies the official client. The public backend rotates
	// browser identities instead, drawn from UserAgents when set.
	UserAgent  string
	UserAgents []string

	// Stealth starts the collector with stealth pacing enabled.
	Stealth bool

	// Retry and pacing overrides. Zero keeps the default. MaxRetries counts
	// retries after the first attempt; set it to NoRetries for a single
	// attempt.
	MaxRetries   int
	BaseDelay    time.Duration
	RequestDelay time.Duration

	// KeepRemovedComments keeps deleted and removed comments with an empty
	// body instead of dropping them.
	KeepRemovedComments bool

	// CloudflareBypass wraps the public transport with browser-like TLS
	// and header settings.
	CloudflareBypass bool

	// Endpoint overrides, mainly for tests.
	PublicBaseURL string
	APIBaseURL    string
	AuthURL       string

	// HTTPClient replaces the default transport of either backend.
	HTTPClient *http.Client

	// Logger receives structured diagnostics. Nil discards them.
	Logger *slog.Logger
}

// NoRetries as Config.MaxRetries makes every request a single attempt.
const NoRetries = -1

// Collector is the entry point for collecting Reddit data. Requests issued
// through one Collector share a single paced request stream.
type Collector struct {
	backend Backend
	rc      *resilient.Client
	logger  *slog.Logger
	opts    normalize.Options
}

// New validates the configuration and builds the selected backend. No
// network traffic happens until the first operation.
func New(config *Config) (*Collector, error) {
	if config == nil {
		return nil, &pkgerrs.ConfigError{Message: "config cannot be nil"}
	}
	cfg := *config
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendPublic
	}
	if cfg.MaxRetries < NoRetries {
		return nil, &pkgerrs.ConfigError{Field: "MaxRetries", Message: "must be NoRetries, zero or positive"}
	}

	rc := resilient.New(resilient.Options{
		Policy: policyFor(cfg),
		Logger: cfg.Logger.With(slog.String("component", "resilient")),
	})
	opts := normalize.Options{KeepRemoved: cfg.KeepRemovedComments}

	backend, err := newBackend(cfg, rc, opts)
	if err != nil {
		return nil, err
	}

	c := newCollector(backend, rc, cfg.Logger)
	c.opts = opts
	if cfg.Stealth {
		c.EnableStealth()
	}
	cfg.Logger.Info("collector ready", slog.String("backend", backend.Name()))
	return c, nil
}

func newCollector(backend Backend, rc *resilient.Client, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{backend: backend, rc: rc, logger: logger}
}

func policyFor(cfg Config) resilient.Policy {
	p := resilient.DefaultPolicy()
	switch {
	case cfg.MaxRetries == NoRetries:
		p.MaxRetries = 0
	case cfg.MaxRetries > 0:
		p.MaxRetries = cfg.MaxRetries
	}
	if cfg.BaseDelay > 0 {
		p.BaseDelay = cfg.BaseDelay
	}
	if cfg.RequestDelay > 0 {
		p.RequestDelay = max(cfg.RequestDelay, resilient.MinRequestDelay)
	}
	return p
}

// newBackend is the backend factory.
func newBackend(cfg Config, rc *resilient.Client, opts normalize.Options) (Backend, error) {
	switch cfg.Backend {
	case BackendPublic:
		var agents *useragent.Rotator
		if len(cfg.UserAgents) > 0 {
			agents = useragent.New(useragent.WithPool(cfg.UserAgents...))
		}
		return scrape.New(rc, scrape.Config{
			BaseURL:          cfg.PublicBaseURL,
			HTTPClient:       cfg.HTTPClient,
			Agents:           agents,
			CloudflareBypass: cfg.CloudflareBypass,
			Comments:         opts,
			Logger:           cfg.Logger.With(slog.String("component", "scrape")),
		}), nil
	case BackendOfficial:
		return official.New(rc, official.Config{
			Session: oauth.Config{
				ClientID:     cfg.ClientID,
				ClientSecret: cfg.ClientSecret,
				Username:     cfg.Username,
				Password:     cfg.Password,
				UserAgent:    cfg.UserAgent,
				BaseURL:      cfg.APIBaseURL,
				AuthURL:      cfg.AuthURL,
				HTTPClient:   cfg.HTTPClient,
			},
			Comments: opts,
			Logger:   cfg.Logger.With(slog.String("component", "official")),
		})
	default:
		return nil, &pkgerrs.ConfigError{Field: "Backend", Message: "unknown backend " + string(cfg.Backend)}
	}
}

// BackendName reports which backend serves requests.
func (c *Collector) BackendName() string {
	return c.backend.Name()
}

// EnableStealth switches to slow, jittered pacing for long collections.
func (c *Collector) EnableStealth() {
	c.rc.EnableStealth()
}

// DisableStealth restores default pacing.
func (c *Collector) DisableStealth() {
	c.rc.DisableStealth()
}

// SetDelay sets the minimum delay between requests.
func (c *Collector) SetDelay(d time.Duration) {
	c.rc.SetDelay(d)
}

// SetRetryPolicy replaces the retry budget and delays. Non-positive
// durations keep the current value.
func (c *Collector) SetRetryPolicy(maxRetries int, baseDelay, requestDelay time.Duration) {
	c.rc.SetRetryPolicy(maxRetries, baseDelay, requestDelay)
}

// Status is a snapshot of the collector's request pacing.
type Status struct {
	Backend              string
	Stealth              bool
	MaxRetries           int
	BaseDelay            time.Duration
	RequestDelay         time.Duration
	MaxRequestsPerWindow int
	RequestsInWindow     int
	TotalRequests        int
	TotalRetries         int
	SessionDuration      time.Duration
	RequestsPerMinute    float64
	// DeferredUntil is set while the server has asked the collector to wait.
	DeferredUntil time.Time
}

// Status returns the current pacing snapshot.
func (c *Collector) Status() Status {
	s := c.rc.Status()
	return Status{
		Backend:              c.backend.Name(),
		Stealth:              s.Stealth,
		MaxRetries:           s.Policy.MaxRetries,
		BaseDelay:            s.Policy.BaseDelay,
		RequestDelay:         s.Policy.RequestDelay,
		MaxRequestsPerWindow: s.Policy.MaxRequestsPerWindow,
		RequestsInWindow:     s.RequestsInWindow,
		TotalRequests:        s.TotalRequests,
		TotalRetries:         s.TotalRetries,
		SessionDuration:      s.SessionDuration,
		RequestsPerMinute:    s.RequestsPerMinute,
		DeferredUntil:        s.DeferredUntil,
	}
}
