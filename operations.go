package collector

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
	"github.com/jamesprial/go-reddit-collector/pkg/validation"
)

// SubredditPosts lists a subreddit. Sort defaults to hot and Limit to 25.
func (c *Collector) SubredditPosts(ctx context.Context, req *types.PostsRequest) ([]types.Post, error) {
	if req == nil {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "request cannot be nil"}
	}
	r := *req
	if err := validation.PostsRequest(&r); err != nil {
		return nil, err
	}
	return c.backend.SubredditPosts(ctx, r)
}

// Subreddit fetches community metadata. It returns nil when the community
// does not exist or is private.
func (c *Collector) Subreddit(ctx context.Context, name string) (*types.Subreddit, error) {
	name = validation.NormalizeSubreddit(name)
	if err := validation.ValidateSubredditName(name); err != nil {
		return nil, err
	}
	return c.backend.Subreddit(ctx, name)
}

// User fetches an account profile. It returns nil for unknown or suspended
// accounts.
func (c *Collector) User(ctx context.Context, name string) (*types.User, error) {
	name = validation.NormalizeUsername(name)
	if err := validation.ValidateUsername(name); err != nil {
		return nil, err
	}
	return c.backend.User(ctx, name)
}

// Thread fetches a post with its flattened comment tree. postID may be a
// bare id or a t3_ fullname. commentLimit of zero lets Reddit choose.
func (c *Collector) Thread(ctx context.Context, postID string, commentLimit int) (*types.Thread, error) {
	postID = validation.NormalizePostID(postID)
	if err := validation.ValidatePostID(postID); err != nil {
		return nil, err
	}
	if commentLimit < 0 {
		commentLimit = 0
	}
	return c.backend.Thread(ctx, postID, commentLimit)
}

// Comment fetches one comment by bare id or t1_ fullname.
func (c *Collector) Comment(ctx context.Context, commentID string) (*types.Comment, error) {
	commentID = strings.TrimPrefix(strings.TrimSpace(commentID), types.KindComment+"_")
	if !validation.IsValidBase36(commentID) {
		return nil, &pkgerrs.ConfigError{Field: "comment_id", Message: "comment ID must be base36"}
	}
	return c.backend.Comment(ctx, commentID)
}

// Search runs a global search, or a scoped one when req.Subreddit is set.
func (c *Collector) Search(ctx context.Context, req *types.SearchRequest) ([]types.Post, error) {
	if req == nil {
		return nil, &pkgerrs.ConfigError{Field: "request", Message: "request cannot be nil"}
	}
	r := *req
	if err := validation.SearchRequest(&r); err != nil {
		return nil, err
	}
	return c.backend.Search(ctx, r)
}

// UserPosts lists a user's submissions.
func (c *Collector) UserPosts(ctx context.Context, req *types.UserListingRequest) ([]types.Post, error) {
	r, err := userRequest(req)
	if err != nil {
		return nil, err
	}
	return c.backend.UserPosts(ctx, r)
}

// UserComments lists a user's comments.
func (c *Collector) UserComments(ctx context.Context, req *types.UserListingRequest) ([]types.Comment, error) {
	r, err := userRequest(req)
	if err != nil {
		return nil, err
	}
	return c.backend.UserComments(ctx, r)
}

func userRequest(req *types.UserListingRequest) (types.UserListingRequest, error) {
	if req == nil {
		return types.UserListingRequest{}, &pkgerrs.ConfigError{Field: "request", Message: "request cannot be nil"}
	}
	r := *req
	return r, validation.UserListingRequest(&r)
}

// ProgressFunc is called after each post of a batch. done counts the posts
// processed so far, total is the batch size.
type ProgressFunc func(done, total int, post types.Post)

// PostsWithComments lists a subreddit and fetches the comments of every post
// that has any. A human-like pause separates consecutive comment fetches.
// A post whose comments cannot be read is kept without them; authentication
// failures and cancellation abort the batch.
func (c *Collector) PostsWithComments(ctx context.Context, req *types.PostsRequest, commentLimit int, progress ProgressFunc) (*types.Collection, error) {
	posts, err := c.SubredditPosts(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &types.Collection{Posts: posts}
	out.Comments, err = c.commentsFor(ctx, posts, commentLimit, progress)
	return out, err
}

// SearchAndExtract searches and optionally fetches comments for each result.
func (c *Collector) SearchAndExtract(ctx context.Context, req *types.SearchRequest, withComments bool, commentLimit int, progress ProgressFunc) (*types.Collection, error) {
	posts, err := c.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &types.Collection{Posts: posts}
	if !withComments {
		return out, nil
	}
	out.Comments, err = c.commentsFor(ctx, posts, commentLimit, progress)
	return out, err
}

func (c *Collector) commentsFor(ctx context.Context, posts []types.Post, limit int, progress ProgressFunc) ([]types.Comment, error) {
	var (
		comments []types.Comment
		fetched  bool
	)
	for i, p := range posts {
		if p.NumComments > 0 {
			if fetched {
				if err := c.rc.HumanPause(ctx); err != nil {
					return comments, err
				}
			}
			fetched = true

			thread, err := c.Thread(ctx, p.ID, limit)
			switch {
			case err != nil && fatal(ctx, err):
				return comments, err
			case err != nil:
				c.logger.Warn("skipping comments", slog.String("post_id", p.ID), slog.Any("err", err))
			case thread != nil:
				comments = append(comments, thread.Comments...)
			}
		}
		if progress != nil {
			progress(i+1, len(posts), p)
		}
	}
	return comments, nil
}

// fatal reports whether a per-item error should end a batch.
func fatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var authErr *pkgerrs.AuthError
	return errors.As(err, &authErr)
}

// UserActivity gathers a profile with recent posts and comments and
// summarizes scores and communities. It returns nil when the account does
// not exist.
func (c *Collector) UserActivity(ctx context.Context, name string, limit int) (*types.UserActivity, error) {
	user, err := c.User(ctx, name)
	if err != nil || user == nil {
		return nil, err
	}
	req := &types.UserListingRequest{Username: name, Limit: limit}
	posts, err := c.UserPosts(ctx, req)
	if err != nil {
		return nil, err
	}
	comments, err := c.UserComments(ctx, req)
	if err != nil {
		return nil, err
	}
	return summarize(user, posts, comments), nil
}

func summarize(user *types.User, posts []types.Post, comments []types.Comment) *types.UserActivity {
	a := &types.UserActivity{
		User:       user,
		Posts:      posts,
		Comments:   comments,
		Subreddits: map[string]int{},
	}
	for _, p := range posts {
		a.TotalPostScore += p.Score
		a.Subreddits[p.Subreddit]++
	}
	for _, cm := range comments {
		a.TotalCommentScore += cm.Score
		a.Subreddits[cm.Subreddit]++
	}
	return a
}
