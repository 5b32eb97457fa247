// Package normalize turns Reddit payloads into canonical records.
//
// It accepts raw JSON in every shape either backend produces (Listing
// wrappers, single things, the two-element thread array and plain objects)
// as well as the typed wire structs decoded by the oauth session. Nothing in
// this package touches the network.
package normalize

import (
	"encoding/json"
	"html"
	"strings"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// Sentinels Reddit substitutes for removed content.
const (
	Deleted = "[deleted]"
	Removed = "[removed]"
)

// Options tunes comment normalization.
type Options struct {
	// KeepRemoved retains comments whose body was deleted, removed or empty.
	// They are emitted with an empty Body and BodyRemoved set.
	KeepRemoved bool
}

// CleanText unescapes HTML entities once and trims surrounding whitespace.
func CleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(s))
}

// cleaner normalizes one free-text field.
type cleaner func(string) string

// cleanerFor picks the text cleaner for a thing. Reddit wraps everything it
// sends in a kind; a bare object is an already canonical record whose text
// was unescaped when it was first normalized.
func cleanerFor(t *types.Thing) cleaner {
	if t.Kind == "" {
		return strings.TrimSpace
	}
	return CleanText
}

func isSentinel(s string) bool {
	return s == "" || s == Deleted || s == Removed
}

func author(name string, clean cleaner) (string, bool) {
	name = clean(name)
	if isSentinel(name) {
		return "", true
	}
	return name, false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// PostFromLink maps a wire submission onto a Post. It reports false for
// submissions without an id.
func PostFromLink(l *types.LinkData) (types.Post, bool) {
	return postFromLink(l, CleanText)
}

func postFromLink(l *types.LinkData, clean cleaner) (types.Post, bool) {
	if l == nil || l.ID == "" {
		return types.Post{}, false
	}
	name, removed := author(l.Author, clean)
	selftext := clean(l.SelfText)
	if selftext == Deleted || selftext == Removed {
		selftext = ""
	}
	return types.Post{
		ID:            l.ID,
		Title:         clean(l.Title),
		Author:        name,
		AuthorRemoved: removed,
		Subreddit:     l.Subreddit,
		Score:         l.Score,
		UpvoteRatio:   l.UpvoteRatio,
		NumComments:   l.NumComments,
		CreatedUTC:    l.CreatedUTC,
		SelfText:      selftext,
		URL:           l.URL,
		Permalink:     l.Permalink,
		PostFlags: types.PostFlags{
			IsSelf:   l.IsSelf,
			Over18:   l.Over18,
			Spoiler:  l.Spoiler,
			Locked:   l.Locked,
			Archived: l.Archived,
			Stickied: l.Stickied,
		},
		Distinguished: deref(l.Distinguished),
	}, true
}

// CommentFromData maps one wire comment onto a Comment, ignoring its
// replies. depth is used when the payload carries none. It reports false when
// the comment has no id, or when its body is gone and opts does not keep
// removed comments.
func CommentFromData(c *types.CommentData, depth int, opts Options) (types.Comment, bool) {
	return commentFromData(c, depth, opts, CleanText)
}

func commentFromData(c *types.CommentData, depth int, opts Options, clean cleaner) (types.Comment, bool) {
	if c == nil || c.ID == "" {
		return types.Comment{}, false
	}
	body := clean(deref(c.Body))
	bodyRemoved := isSentinel(body)
	if bodyRemoved {
		if !opts.KeepRemoved {
			return types.Comment{}, false
		}
		body = ""
	}
	if c.Depth != nil {
		depth = *c.Depth
	}
	name, removed := author(c.Author, clean)
	return types.Comment{
		ID:               c.ID,
		Author:           name,
		AuthorRemoved:    removed,
		Body:             body,
		BodyRemoved:      bodyRemoved,
		Score:            c.Score,
		CreatedUTC:       c.CreatedUTC,
		ParentID:         c.ParentID,
		LinkID:           c.LinkID,
		Subreddit:        c.Subreddit,
		Permalink:        c.Permalink,
		Depth:            depth,
		IsSubmitter:      c.IsSubmitter,
		Controversiality: c.Controversiality,
		Distinguished:    deref(c.Distinguished),
		Stickied:         c.Stickied,
	}, true
}

// FlattenComments walks comment trees depth-first, parents before their
// replies. Replies of a dropped comment are still visited.
func FlattenComments(roots []*types.CommentData, opts Options) []types.Comment {
	var out []types.Comment
	flatten(roots, 0, opts, &out)
	return out
}

func flatten(comments []*types.CommentData, depth int, opts Options, out *[]types.Comment) {
	for _, c := range comments {
		if c == nil {
			continue
		}
		next := depth
		if rec, ok := CommentFromData(c, depth, opts); ok {
			*out = append(*out, rec)
			next = rec.Depth
		} else if c.Depth != nil {
			next = *c.Depth
		}
		flatten(c.Replies, next+1, opts, out)
	}
}

// MoreIDs collects the truncated child ids of every comment in the trees.
func MoreIDs(roots []*types.CommentData) []string {
	var ids []string
	var walk func([]*types.CommentData)
	walk = func(cs []*types.CommentData) {
		for _, c := range cs {
			if c == nil {
				continue
			}
			ids = append(ids, c.More...)
			walk(c.Replies)
		}
	}
	walk(roots)
	return ids
}

// UserFromAccount maps a wire account onto a User, or nil without an id.
func UserFromAccount(a *types.AccountData) *types.User {
	if a == nil || a.ID == "" {
		return nil
	}
	u := &types.User{
		Name:         a.Name,
		ID:           a.ID,
		CreatedUTC:   a.CreatedUTC,
		CommentKarma: a.CommentKarma,
		LinkKarma:    a.LinkKarma,
	}
	if a.Verified != nil {
		u.Verified = *a.Verified
	}
	if a.HasVerifiedEmail != nil {
		u.HasVerifiedEmail = *a.HasVerifiedEmail
	}
	return u
}

// SubredditFromData maps wire community metadata onto a Subreddit, or nil
// without an id.
func SubredditFromData(s *types.SubredditData) *types.Subreddit {
	return subredditFromData(s, CleanText)
}

func subredditFromData(s *types.SubredditData, clean cleaner) *types.Subreddit {
	if s == nil || s.ID == "" {
		return nil
	}
	active := s.ActiveUserCount
	if active == 0 {
		active = s.AccountsActive
	}
	return &types.Subreddit{
		Name:              s.DisplayName,
		ID:                s.ID,
		Title:             clean(s.Title),
		PublicDescription: clean(s.PublicDescription),
		Subscribers:       s.Subscribers,
		ActiveUsers:       active,
		Over18:            s.Over18,
		SubredditType:     s.SubredditType,
		CreatedUTC:        s.CreatedUTC,
		URL:               s.URL,
	}
}

// Posts extracts every submission in a payload, in payload order.
func Posts(raw json.RawMessage) ([]types.Post, error) {
	things, err := Things(raw)
	if err != nil {
		return nil, parseError("posts", err)
	}
	posts := make([]types.Post, 0, len(things))
	for _, t := range things {
		if t == nil || (t.Kind != types.KindLink && t.Kind != "") {
			continue
		}
		l, err := ParseLink(t)
		if err != nil {
			continue
		}
		if p, ok := postFromLink(l, cleanerFor(t)); ok {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// Post returns the first submission in a payload, or nil if there is none.
func Post(raw json.RawMessage) (*types.Post, error) {
	posts, err := Posts(raw)
	if err != nil || len(posts) == 0 {
		return nil, err
	}
	return &posts[0], nil
}

// Comments extracts and flattens every comment in a payload. The second
// result lists the ids of children Reddit left out of the tree.
func Comments(raw json.RawMessage, opts Options) ([]types.Comment, []string, error) {
	things, err := Things(raw)
	if err != nil {
		return nil, nil, parseError("comments", err)
	}
	var (
		out          []types.Comment
		more, nested []string
	)
	for _, t := range things {
		if t != nil && t.Kind == "" {
			c, err := parseComment(t, 0)
			if err != nil {
				continue
			}
			if rec, ok := commentFromData(c, 0, opts, strings.TrimSpace); ok {
				out = append(out, rec)
			}
			continue
		}
		roots, m := extractCommentChildren([]*types.Thing{t}, 0)
		out = append(out, FlattenComments(roots, opts)...)
		more = append(more, m...)
		nested = append(nested, MoreIDs(roots)...)
	}
	return out, append(more, nested...), nil
}

// Thread normalizes a /comments/{id} payload: the submission listing
// followed by the comment listing.
func Thread(raw json.RawMessage, opts Options) (*types.Thread, error) {
	things, err := Things(raw)
	if err != nil {
		return nil, parseError("thread", err)
	}

	thread := &types.Thread{}
	var linkThings, commentThings []*types.Thing
	for _, t := range things {
		if t == nil {
			continue
		}
		switch t.Kind {
		case types.KindLink:
			linkThings = append(linkThings, t)
		case types.KindComment, types.KindMore:
			commentThings = append(commentThings, t)
		}
	}
	for _, l := range ExtractLinks(linkThings) {
		if p, ok := PostFromLink(l); ok {
			thread.Post = &p
			break
		}
	}
	roots, more := extractCommentChildren(commentThings, 0)
	thread.Comments = FlattenComments(roots, opts)
	thread.MoreIDs = append(more, MoreIDs(roots)...)
	return thread, nil
}

// User normalizes an account payload, returning nil when it holds none.
func User(raw json.RawMessage) (*types.User, error) {
	things, err := Things(raw)
	if err != nil {
		return nil, parseError("user", err)
	}
	for _, t := range things {
		if t == nil || (t.Kind != types.KindAccount && t.Kind != "") {
			continue
		}
		a, err := ParseAccount(t)
		if err != nil {
			return nil, parseError("user", err)
		}
		if u := UserFromAccount(a); u != nil {
			return u, nil
		}
	}
	return nil, nil
}

// Subreddit normalizes community metadata, returning nil when it holds none.
func Subreddit(raw json.RawMessage) (*types.Subreddit, error) {
	things, err := Things(raw)
	if err != nil {
		return nil, parseError("subreddit", err)
	}
	for _, t := range things {
		if t == nil || (t.Kind != types.KindSubreddit && t.Kind != "") {
			continue
		}
		s, err := ParseSubreddit(t)
		if err != nil {
			return nil, parseError("subreddit", err)
		}
		if sub := subredditFromData(s, cleanerFor(t)); sub != nil {
			return sub, nil
		}
	}
	return nil, nil
}

func parseError(op string, err error) error {
	return &pkgerrs.ParseError{Operation: op, Message: "failed to normalize payload", Err: err}
}
