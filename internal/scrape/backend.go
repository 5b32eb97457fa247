// Package scrape reads Reddit's public .json endpoints without credentials.
//
// Every request goes through a resilient.Client and carries a freshly
// rotated browser identity. Payloads are handed to the normalizer, so the
// backend returns canonical records.
package scrape

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jamesprial/go-reddit-collector/internal/normalize"
	"github.com/jamesprial/go-reddit-collector/internal/resilient"
	"github.com/jamesprial/go-reddit-collector/internal/useragent"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
	"github.com/jamesprial/go-reddit-collector/pkg/validation"
)

var tracer = otel.Tracer("github.com/jamesprial/go-reddit-collector/internal/scrape")

const (
	DefaultBaseURL        = "https://www.reddit.com"
	DefaultTimeout        = 10 * time.Second
	DefaultAboutCacheSize = 256
	DefaultAboutCacheTTL  = 15 * time.Minute
)

var browserHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"DNT":             "1",
}

// Sent on the retry after a 403.
var alternateHeaders = map[string]string{
	"Accept":           "application/json, text/plain, */*",
	"Accept-Language":  "en-US,en;q=0.9",
	"Referer":          "https://www.reddit.com/",
	"Origin":           "https://www.reddit.com",
	"X-Requested-With": "XMLHttpRequest",
}

// Config configures a Backend. Zero values select the defaults above.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient replaces the transport resty builds, mainly for tests.
	HTTPClient *http.Client
	Agents     *useragent.Rotator
	// CloudflareBypass wraps the transport with cloudflare-bp-go.
	CloudflareBypass bool
	AboutCacheSize   int
	AboutCacheTTL    time.Duration
	Comments         normalize.Options
	Logger           *slog.Logger
}

// Backend implements the public JSON collector backend.
type Backend struct {
	http     *resty.Client
	rc       *resilient.Client
	agents   *useragent.Rotator
	about    *expirable.LRU[string, json.RawMessage]
	comments normalize.Options
	logger   *slog.Logger
}

// New builds a Backend that sends every request through rc.
func New(rc *resilient.Client, cfg Config) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Agents == nil {
		cfg.Agents = useragent.New()
	}
	if cfg.AboutCacheSize <= 0 {
		cfg.AboutCacheSize = DefaultAboutCacheSize
	}
	if cfg.AboutCacheTTL <= 0 {
		cfg.AboutCacheTTL = DefaultAboutCacheTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	var httpClient *resty.Client
	if cfg.HTTPClient != nil {
		httpClient = resty.NewWithClient(cfg.HTTPClient)
	} else {
		httpClient = resty.New()
	}
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetTimeout(cfg.Timeout)
	httpClient.SetHeaders(browserHeaders)
	if cfg.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	b := &Backend{
		http:     httpClient,
		rc:       rc,
		agents:   cfg.Agents,
		about:    expirable.NewLRU[string, json.RawMessage](cfg.AboutCacheSize, nil, cfg.AboutCacheTTL),
		comments: cfg.Comments,
		logger:   cfg.Logger,
	}
	httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		if resp.IsSuccess() {
			b.applyRateHeaders(resp.Header())
		}
		return nil
	})
	return b
}

// Name identifies the backend in logs and status output.
func (b *Backend) Name() string { return "public" }

// Reddit reports the remaining budget and the seconds until it resets.
func (b *Backend) applyRateHeaders(h http.Header) {
	remaining, errRemaining := strconv.ParseFloat(h.Get("X-Ratelimit-Remaining"), 64)
	reset, errReset := strconv.ParseFloat(h.Get("X-Ratelimit-Reset"), 64)
	if errRemaining != nil || errReset != nil || reset <= 0 {
		return
	}
	if remaining <= 1 {
		until := b.rc.Now().Add(time.Duration(reset * float64(time.Second)))
		b.logger.Warn("rate limit budget exhausted", slog.Time("until", until))
		b.rc.DeferUntil(until)
	}
}

// fetch runs one GET under the resilient client. A nil payload with a nil
// error means the resource is unavailable.
func (b *Backend) fetch(ctx context.Context, op, path string, q url.Values) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "scrape."+op)
	defer span.End()
	span.SetAttributes(attribute.String("reddit.path", path))

	raw, err := b.rc.Execute(ctx, func(ctx context.Context, profile resilient.Profile) (json.RawMessage, error) {
		req := b.http.R().
			SetContext(ctx).
			SetHeader("User-Agent", b.agents.Next())
		if profile == resilient.ProfileAlternate {
			req.SetHeaders(alternateHeaders)
		}
		if len(q) > 0 {
			req.SetQueryParamsFromValues(q)
		}

		resp, err := req.Get(path)
		if err != nil {
			return nil, &pkgerrs.ClientError{Operation: "GET " + path, Err: err}
		}
		if sig := resilient.StatusSignal(resp.StatusCode(), resp.Header(), resp.Body(), b.rc.Now()); sig != nil {
			return nil, sig
		}
		return json.RawMessage(resp.Body()), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if raw == nil {
		b.logger.Debug("no result", slog.String("op", op), slog.String("path", path))
	}
	return raw, nil
}

func limitQuery(limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(validation.ClampLimit(limit)))
	return q
}

// SubredditPosts lists a subreddit by sort.
func (b *Backend) SubredditPosts(ctx context.Context, req types.PostsRequest) ([]types.Post, error) {
	sort := req.Sort
	if sort == "" {
		sort = types.SortHot
	}
	raw, err := b.fetch(ctx, "subreddit_posts", "/r/"+url.PathEscape(req.Subreddit)+"/"+sort+".json", limitQuery(req.Limit))
	if err != nil || raw == nil {
		return nil, err
	}
	return normalize.Posts(raw)
}

// Subreddit fetches community metadata. Results are cached.
func (b *Backend) Subreddit(ctx context.Context, name string) (*types.Subreddit, error) {
	raw, err := b.cachedAbout(ctx, "r/"+name, "/r/"+url.PathEscape(name)+"/about.json")
	if err != nil || raw == nil {
		return nil, err
	}
	return normalize.Subreddit(raw)
}

// User fetches an account profile. Results are cached.
func (b *Backend) User(ctx context.Context, name string) (*types.User, error) {
	raw, err := b.cachedAbout(ctx, "u/"+name, "/user/"+url.PathEscape(name)+"/about.json")
	if err != nil || raw == nil {
		return nil, err
	}
	return normalize.User(raw)
}

func (b *Backend) cachedAbout(ctx context.Context, key, path string) (json.RawMessage, error) {
	if raw, ok := b.about.Get(key); ok {
		return raw, nil
	}
	raw, err := b.fetch(ctx, "about", path, nil)
	if err != nil || raw == nil {
		return nil, err
	}
	b.about.Add(key, raw)
	return raw, nil
}

// Thread fetches a post and its comment tree. limit caps the number of
// comments Reddit returns.
func (b *Backend) Thread(ctx context.Context, postID string, limit int) (*types.Thread, error) {
	raw, err := b.fetch(ctx, "thread", "/comments/"+url.PathEscape(postID)+".json", limitQuery(limit))
	if err != nil || raw == nil {
		return nil, err
	}
	thread, err := normalize.Thread(raw, b.comments)
	if err != nil || thread.Post == nil {
		return nil, err
	}
	return thread, nil
}

// Search runs a global or subreddit-scoped search.
func (b *Backend) Search(ctx context.Context, req types.SearchRequest) ([]types.Post, error) {
	q := limitQuery(req.Limit)
	q.Set("q", req.Query)
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.TimeFilter != "" {
		q.Set("t", req.TimeFilter)
	}
	path := "/search.json"
	if req.Subreddit != "" {
		path = "/r/" + url.PathEscape(req.Subreddit) + "/search.json"
		q.Set("restrict_sr", "on")
	}
	raw, err := b.fetch(ctx, "search", path, q)
	if err != nil || raw == nil {
		return nil, err
	}
	return normalize.Posts(raw)
}

func userListingQuery(req types.UserListingRequest) url.Values {
	q := limitQuery(req.Limit)
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	return q
}

// UserPosts lists a user's submissions.
func (b *Backend) UserPosts(ctx context.Context, req types.UserListingRequest) ([]types.Post, error) {
	raw, err := b.fetch(ctx, "user_posts", "/user/"+url.PathEscape(req.Username)+"/submitted.json", userListingQuery(req))
	if err != nil || raw == nil {
		return nil, err
	}
	return normalize.Posts(raw)
}

// UserComments lists a user's comments.
func (b *Backend) UserComments(ctx context.Context, req types.UserListingRequest) ([]types.Comment, error) {
	raw, err := b.fetch(ctx, "user_comments", "/user/"+url.PathEscape(req.Username)+"/comments.json", userListingQuery(req))
	if err != nil || raw == nil {
		return nil, err
	}
	comments, _, err := normalize.Comments(raw, b.comments)
	return comments, err
}

// Comment fetches a single comment by id through the info endpoint.
func (b *Backend) Comment(ctx context.Context, commentID string) (*types.Comment, error) {
	q := url.Values{}
	q.Set("id", types.KindComment+"_"+commentID)
	raw, err := b.fetch(ctx, "comment", "/api/info.json", q)
	if err != nil || raw == nil {
		return nil, err
	}
	comments, _, err := normalize.Comments(raw, b.comments)
	if err != nil || len(comments) == 0 {
		return nil, err
	}
	return &comments[0], nil
}
