package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	collector "github.com/jamesprial/go-reddit-collector"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

const titleWidth = 60

func newTable(out io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

func renderPosts(out io.Writer, data *types.Collection) {
	t := newTable(out, "")
	t.AppendHeader(table.Row{"#", "ID", "Subreddit", "Author", "Score", "Comments", "Title"})
	for i, p := range data.Posts {
		t.AppendRow(table.Row{i + 1, p.ID, p.Subreddit, author(p.Author, p.AuthorRemoved), p.Score, p.NumComments, text.Trim(p.Title, titleWidth)})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", fmt.Sprintf("%d posts, %d comments", len(data.Posts), len(data.Comments))})
	t.Render()
}

func renderThread(out io.Writer, thread *types.Thread) {
	p := thread.Post
	cs := collector.CommentSet(thread.Comments)
	t := newTable(out, text.Trim(p.Title, titleWidth))
	t.AppendRows([]table.Row{
		{"ID", p.ID},
		{"Subreddit", p.Subreddit},
		{"Author", author(p.Author, p.AuthorRemoved)},
		{"Score", p.Score},
		{"Comments", len(cs)},
		{"Top-level", len(cs.TopLevel())},
		{"Max depth", cs.MaxDepth()},
		{"Truncated", len(thread.MoreIDs)},
	})
	t.Render()

	ct := newTable(out, "")
	ct.AppendHeader(table.Row{"Depth", "Author", "Score", "Body"})
	for _, c := range cs {
		ct.AppendRow(table.Row{c.Depth, author(c.Author, c.AuthorRemoved), c.Score, text.Trim(c.Body, titleWidth)})
	}
	ct.Render()
}

func renderActivity(out io.Writer, a *types.UserActivity) {
	u := a.User
	t := newTable(out, "u/"+u.Name)
	t.AppendRows([]table.Row{
		{"Created", time.Unix(int64(u.CreatedUTC), 0).UTC().Format(time.DateOnly)},
		{"Link karma", u.LinkKarma},
		{"Comment karma", u.CommentKarma},
		{"Posts", len(a.Posts)},
		{"Comments", len(a.Comments)},
		{"Post score", a.TotalPostScore},
		{"Comment score", a.TotalCommentScore},
	})
	t.Render()

	st := newTable(out, "Activity by subreddit")
	st.AppendHeader(table.Row{"Subreddit", "Items"})
	names := slices.Sorted(maps.Keys(a.Subreddits))
	slices.SortStableFunc(names, func(x, y string) int { return a.Subreddits[y] - a.Subreddits[x] })
	for _, name := range names {
		st.AppendRow(table.Row{name, a.Subreddits[name]})
	}
	st.Render()
}

func renderStatus(out io.Writer, s collector.Status) {
	t := newTable(out, "Collector status")
	rows := []table.Row{
		{"Backend", s.Backend},
		{"Stealth", s.Stealth},
		{"Max retries", s.MaxRetries},
		{"Back-off base", s.BaseDelay},
		{"Request delay", s.RequestDelay},
		{"Requests per window", fmt.Sprintf("%d / %d", s.RequestsInWindow, s.MaxRequestsPerWindow)},
		{"Total requests", s.TotalRequests},
		{"Total retries", s.TotalRetries},
		{"Requests per minute", fmt.Sprintf("%.1f", s.RequestsPerMinute)},
	}
	if !s.DeferredUntil.IsZero() {
		rows = append(rows, table.Row{"Deferred until", s.DeferredUntil.Format(time.Kitchen)})
	}
	t.AppendRows(rows)
	t.Render()
}

// printPost writes one line per post for streaming output.
func printPost(out io.Writer, p types.Post) {
	created := time.Unix(int64(p.CreatedUTC), 0).UTC().Format(time.DateTime)
	fmt.Fprintf(out, "%s  r/%s  %5d  %s  u/%s  https://www.reddit.com%s\n",
		created, p.Subreddit, p.Score, text.Trim(p.Title, titleWidth), author(p.Author, p.AuthorRemoved), p.Permalink)
}

func author(name string, removed bool) string {
	if removed {
		return "[deleted]"
	}
	return name
}
