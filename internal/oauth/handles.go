package oauth

import (
	"context"
	"net/url"

	"github.com/jamesprial/go-reddit-collector/internal/normalize"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// SubredditHandle addresses one community. Creating it makes no request.
type SubredditHandle struct {
	s    *Session
	name string
}

// Subreddit returns a handle for r/name.
func (s *Session) Subreddit(name string) *SubredditHandle {
	return &SubredditHandle{s: s, name: name}
}

func (h *SubredditHandle) listing(ctx context.Context, sort string, limit int) ([]*types.LinkData, error) {
	return h.s.links(ctx, "r/"+url.PathEscape(h.name)+"/"+sort, limitQuery(limit))
}

// Hot lists the community's hot submissions.
func (h *SubredditHandle) Hot(ctx context.Context, limit int) ([]*types.LinkData, error) {
	return h.listing(ctx, types.SortHot, limit)
}

// New lists the newest submissions.
func (h *SubredditHandle) New(ctx context.Context, limit int) ([]*types.LinkData, error) {
	return h.listing(ctx, types.SortNew, limit)
}

// Top lists the top submissions.
func (h *SubredditHandle) Top(ctx context.Context, limit int) ([]*types.LinkData, error) {
	return h.listing(ctx, types.SortTop, limit)
}

// Rising lists rising submissions.
func (h *SubredditHandle) Rising(ctx context.Context, limit int) ([]*types.LinkData, error) {
	return h.listing(ctx, types.SortRising, limit)
}

// Search searches within the community.
func (h *SubredditHandle) Search(ctx context.Context, query, sort, timeFilter string, limit int) ([]*types.LinkData, error) {
	return h.s.links(ctx, "r/"+url.PathEscape(h.name)+"/search", searchQuery(query, sort, timeFilter, limit, true))
}

// About fetches the community metadata.
func (h *SubredditHandle) About(ctx context.Context) (*types.SubredditData, error) {
	raw, err := h.s.client.Get(ctx, "r/"+url.PathEscape(h.name)+"/about", nil)
	if err != nil {
		return nil, err
	}
	things, err := normalize.Things(raw)
	if err != nil || len(things) == 0 {
		return nil, &pkgerrs.ParseError{Operation: "subreddit about", Message: "no subreddit in response", Err: err}
	}
	return normalize.ParseSubreddit(things[0])
}

// RedditorHandle addresses one account.
type RedditorHandle struct {
	s    *Session
	name string
}

// Redditor returns a handle for u/name.
func (s *Session) Redditor(name string) *RedditorHandle {
	return &RedditorHandle{s: s, name: name}
}

// About fetches the account.
func (h *RedditorHandle) About(ctx context.Context) (*types.AccountData, error) {
	raw, err := h.s.client.Get(ctx, "user/"+url.PathEscape(h.name)+"/about", nil)
	if err != nil {
		return nil, err
	}
	return decodeAccount(raw)
}

// Submitted lists the account's submissions.
func (h *RedditorHandle) Submitted(ctx context.Context, sort string, limit int) ([]*types.LinkData, error) {
	q := limitQuery(limit)
	if sort != "" {
		q.Set("sort", sort)
	}
	return h.s.links(ctx, "user/"+url.PathEscape(h.name)+"/submitted", q)
}

// Comments lists the account's comments. Profile listings carry no reply
// trees.
func (h *RedditorHandle) Comments(ctx context.Context, sort string, limit int) ([]*types.CommentData, error) {
	q := limitQuery(limit)
	if sort != "" {
		q.Set("sort", sort)
	}
	raw, err := h.s.client.Get(ctx, "user/"+url.PathEscape(h.name)+"/comments", q)
	if err != nil {
		return nil, err
	}
	things, err := normalize.Things(raw)
	if err != nil {
		return nil, &pkgerrs.ParseError{Operation: "user comments", Err: err}
	}
	var out []*types.CommentData
	for _, t := range things {
		if t == nil || t.Kind != types.KindComment {
			continue
		}
		c, err := normalize.ParseComment(t)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// SubmissionHandle addresses one post.
type SubmissionHandle struct {
	s     *Session
	id    string
	limit int
}

// Submission returns a handle for the post with the given base-36 id.
func (s *Session) Submission(id string) *SubmissionHandle {
	return &SubmissionHandle{s: s, id: id}
}

// Limit caps the number of comments Reddit returns with the post.
func (h *SubmissionHandle) Limit(n int) *SubmissionHandle {
	h.limit = n
	return h
}

// Submission is a loaded post with its reply forest.
type Submission struct {
	Link     *types.LinkData
	Comments []*types.CommentData
	// MoreIDs lists top-level children Reddit truncated.
	MoreIDs []string
}

// Load fetches the post and its comment tree.
func (h *SubmissionHandle) Load(ctx context.Context) (*Submission, error) {
	var q url.Values
	if h.limit > 0 {
		q = limitQuery(h.limit)
	}
	raw, err := h.s.client.Get(ctx, "comments/"+url.PathEscape(h.id), q)
	if err != nil {
		return nil, err
	}
	things, err := normalize.Things(raw)
	if err != nil {
		return nil, &pkgerrs.ParseError{Operation: "submission", Err: err}
	}

	sub := &Submission{}
	var linkThings []*types.Thing
	for _, t := range things {
		if t == nil {
			continue
		}
		switch t.Kind {
		case types.KindLink:
			linkThings = append(linkThings, t)
		case types.KindComment:
			c, err := normalize.ParseComment(t)
			if err != nil {
				continue
			}
			sub.Comments = append(sub.Comments, c)
		case types.KindMore:
			m, err := normalize.ParseMore(t)
			if err != nil {
				continue
			}
			sub.MoreIDs = append(sub.MoreIDs, m.Children...)
		}
	}
	if links := normalize.ExtractLinks(linkThings); len(links) > 0 {
		sub.Link = links[0]
	}
	if sub.Link == nil {
		return nil, &APIError{StatusCode: 404, Status: "404 Not Found", Body: "submission " + h.id + " not in response"}
	}
	return sub, nil
}

// CommentHandle addresses one comment.
type CommentHandle struct {
	s  *Session
	id string
}

// Comment returns a handle for the comment with the given base-36 id.
func (s *Session) Comment(id string) *CommentHandle {
	return &CommentHandle{s: s, id: id}
}

// Load fetches the comment through the info endpoint.
func (h *CommentHandle) Load(ctx context.Context) (*types.CommentData, error) {
	q := url.Values{}
	q.Set("id", types.KindComment+"_"+h.id)
	raw, err := h.s.client.Get(ctx, "api/info", q)
	if err != nil {
		return nil, err
	}
	things, err := normalize.Things(raw)
	if err != nil {
		return nil, &pkgerrs.ParseError{Operation: "comment", Err: err}
	}
	for _, t := range things {
		if t != nil && t.Kind == types.KindComment {
			return normalize.ParseComment(t)
		}
	}
	return nil, &APIError{StatusCode: 404, Status: "404 Not Found", Body: "comment " + h.id + " not in response"}
}
