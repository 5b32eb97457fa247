// Package official collects through Reddit's authenticated API. It drives an
// oauth.Session and re-applies the resilient retry contract around every
// session call, reclassifying the session's errors into resilient signals.
package official

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jamesprial/go-reddit-collector/internal/normalize"
	"github.com/jamesprial/go-reddit-collector/internal/oauth"
	"github.com/jamesprial/go-reddit-collector/internal/resilient"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

var tracer = otel.Tracer("github.com/jamesprial/go-reddit-collector/internal/official")

// Config configures a Backend.
type Config struct {
	// Session holds the OAuth credentials. Username and Password switch the
	// session from read-only to user authentication.
	Session  oauth.Config
	Comments normalize.Options
	Logger   *slog.Logger
}

// Backend implements the authenticated collector backend.
type Backend struct {
	session  *oauth.Session
	rc       *resilient.Client
	boot     *bootstrapper
	comments normalize.Options
	logger   *slog.Logger
}

// New validates the credentials and prepares the backend. The session is
// established on the first operation.
func New(rc *resilient.Client, cfg Config) (*Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	sessCfg := cfg.Session
	if sessCfg.Logger == nil {
		sessCfg.Logger = cfg.Logger
	}
	session, err := oauth.New(&sessCfg)
	if err != nil {
		return nil, err
	}
	return &Backend{
		session:  session,
		rc:       rc,
		boot:     &bootstrapper{},
		comments: cfg.Comments,
		logger:   cfg.Logger,
	}, nil
}

// Name identifies the backend in logs and status output.
func (b *Backend) Name() string { return "official" }

// Connect establishes the session. Operations call it implicitly. The token
// exchange runs under the resilient client, so outages and server errors are
// retried with back-off. Rejected credentials are permanent and reported as an
// AuthError on every later call.
func (b *Backend) Connect(ctx context.Context) error {
	return b.boot.run(ctx, func(ctx context.Context) error {
		mode := "read-only"
		if b.session.UserAuth() {
			mode = "user"
		}
		_, ok, err := resilient.Call(ctx, b.rc, func(ctx context.Context, _ resilient.Profile) (struct{}, error) {
			if err := b.session.Connect(ctx); err != nil {
				return struct{}{}, translate(err, b.rc.Now())
			}
			return struct{}{}, nil
		}, nil)
		if err == nil && !ok {
			err = &pkgerrs.RequestError{Operation: "connect", Message: "token endpoint returned no usable response"}
		}
		if err != nil {
			b.logger.Error("session bootstrap failed", slog.String("mode", mode), slog.Any("err", err))
			return err
		}
		b.logger.Info("authenticated session established", slog.String("mode", mode))
		return nil
	})
}

// Connected reports whether the session is established, or its credentials
// were rejected.
func (b *Backend) Connected() bool {
	return b.boot.done()
}

// call runs fn under the resilient client. ok is false for "no result".
func call[T any](ctx context.Context, b *Backend, op string, fn func(context.Context) (T, error)) (T, bool, error) {
	var zero T
	if err := b.Connect(ctx); err != nil {
		return zero, false, err
	}

	ctx, span := tracer.Start(ctx, "official."+op)
	defer span.End()

	out, ok, err := resilient.Call(ctx, b.rc, func(ctx context.Context, _ resilient.Profile) (T, error) {
		out, err := fn(ctx)
		if err != nil {
			return out, translate(err, b.rc.Now())
		}
		return out, nil
	}, nil)
	span.SetAttributes(attribute.Bool("reddit.result", ok))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, ok, err
}

// translate maps session errors onto resilient signals. Rate limiting goes
// through the same classifier as an HTTP 429.
func translate(err error, now time.Time) error {
	var rl *oauth.RateLimitError
	if errors.As(err, &rl) {
		h := http.Header{}
		if rl.RetryAfter > 0 {
			h.Set("Retry-After", strconv.FormatFloat(rl.RetryAfter.Seconds(), 'f', -1, 64))
		}
		return resilient.StatusSignal(http.StatusTooManyRequests, h, []byte(rl.Body), now)
	}

	var apiErr *oauth.APIError
	if errors.As(err, &apiErr) {
		if sig := resilient.StatusSignal(apiErr.StatusCode, nil, []byte(apiErr.Body), now); sig != nil {
			return sig
		}
		return resilient.NewSignal(resilient.Transient, err)
	}

	var authErr *pkgerrs.AuthError
	if errors.As(err, &authErr) {
		return resilient.NewSignal(resilient.Fatal, err)
	}

	var parseErr *pkgerrs.ParseError
	if errors.As(err, &parseErr) {
		return resilient.NewSignal(resilient.Malformed, err)
	}
	return err
}

// SubredditPosts lists a subreddit by sort.
func (b *Backend) SubredditPosts(ctx context.Context, req types.PostsRequest) ([]types.Post, error) {
	handle := b.session.Subreddit(req.Subreddit)
	list := handle.Hot
	switch req.Sort {
	case types.SortNew:
		list = handle.New
	case types.SortTop:
		list = handle.Top
	case types.SortRising:
		list = handle.Rising
	}
	links, _, err := call(ctx, b, "subreddit_posts", func(ctx context.Context) ([]*types.LinkData, error) {
		return list(ctx, req.Limit)
	})
	if err != nil {
		return nil, err
	}
	return posts(links), nil
}

// Subreddit fetches community metadata.
func (b *Backend) Subreddit(ctx context.Context, name string) (*types.Subreddit, error) {
	data, ok, err := call(ctx, b, "subreddit", b.session.Subreddit(name).About)
	if err != nil || !ok {
		return nil, err
	}
	return normalize.SubredditFromData(data), nil
}

// User fetches an account profile.
func (b *Backend) User(ctx context.Context, name string) (*types.User, error) {
	data, ok, err := call(ctx, b, "user", b.session.Redditor(name).About)
	if err != nil || !ok {
		return nil, err
	}
	return normalize.UserFromAccount(data), nil
}

// Thread fetches a post and its comment tree.
func (b *Backend) Thread(ctx context.Context, postID string, limit int) (*types.Thread, error) {
	sub, ok, err := call(ctx, b, "thread", b.session.Submission(postID).Limit(limit).Load)
	if err != nil || !ok || sub == nil {
		return nil, err
	}
	post, found := normalize.PostFromLink(sub.Link)
	if !found {
		return nil, nil
	}
	return &types.Thread{
		Post:     &post,
		Comments: normalize.FlattenComments(sub.Comments, b.comments),
		MoreIDs:  append(sub.MoreIDs, normalize.MoreIDs(sub.Comments)...),
	}, nil
}

// Comment fetches a single comment.
func (b *Backend) Comment(ctx context.Context, commentID string) (*types.Comment, error) {
	data, ok, err := call(ctx, b, "comment", b.session.Comment(commentID).Load)
	if err != nil || !ok {
		return nil, err
	}
	c, kept := normalize.CommentFromData(data, 0, b.comments)
	if !kept {
		return nil, nil
	}
	return &c, nil
}

// Search runs a global or subreddit-scoped search.
func (b *Backend) Search(ctx context.Context, req types.SearchRequest) ([]types.Post, error) {
	links, _, err := call(ctx, b, "search", func(ctx context.Context) ([]*types.LinkData, error) {
		if req.Subreddit != "" {
			return b.session.Subreddit(req.Subreddit).Search(ctx, req.Query, req.Sort, req.TimeFilter, req.Limit)
		}
		return b.session.Search(ctx, req.Query, req.Sort, req.TimeFilter, req.Limit)
	})
	if err != nil {
		return nil, err
	}
	return posts(links), nil
}

// UserPosts lists a user's submissions.
func (b *Backend) UserPosts(ctx context.Context, req types.UserListingRequest) ([]types.Post, error) {
	links, _, err := call(ctx, b, "user_posts", func(ctx context.Context) ([]*types.LinkData, error) {
		return b.session.Redditor(req.Username).Submitted(ctx, req.Sort, req.Limit)
	})
	if err != nil {
		return nil, err
	}
	return posts(links), nil
}

// UserComments lists a user's comments.
func (b *Backend) UserComments(ctx context.Context, req types.UserListingRequest) ([]types.Comment, error) {
	data, _, err := call(ctx, b, "user_comments", func(ctx context.Context) ([]*types.CommentData, error) {
		return b.session.Redditor(req.Username).Comments(ctx, req.Sort, req.Limit)
	})
	if err != nil {
		return nil, err
	}
	var out []types.Comment
	for _, d := range data {
		if c, ok := normalize.CommentFromData(d, 0, b.comments); ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func posts(links []*types.LinkData) []types.Post {
	if links == nil {
		return nil
	}
	out := make([]types.Post, 0, len(links))
	for _, l := range links {
		if p, ok := normalize.PostFromLink(l); ok {
			out = append(out, p)
		}
	}
	return out
}
