package testutil

import (
	"encoding/json"
	"testing"
)

// Thing is a Reddit kind/data envelope in map form.
type Thing = map[string]any

// Link builds a t3 thing. extra overrides or adds data fields.
func Link(id, subreddit, title string, extra map[string]any) Thing {
	data := map[string]any{
		"id":            id,
		"name":          "t3_" + id,
		"title":         title,
		"author":        "author_" + id,
		"subreddit":     subreddit,
		"score":         42,
		"upvote_ratio":  0.93,
		"num_comments":  3,
		"created_utc":   1714564800.0,
		"selftext":      "",
		"url":           "https://www.reddit.com/r/" + subreddit + "/comments/" + id + "/",
		"permalink":     "/r/" + subreddit + "/comments/" + id + "/",
		"is_self":       false,
		"over_18":       false,
		"spoiler":       false,
		"locked":        false,
		"archived":      false,
		"stickied":      false,
		"distinguished": nil,
	}
	for k, v := range extra {
		data[k] = v
	}
	return Thing{"kind": "t3", "data": data}
}

// Comment builds a t1 thing with nested replies.
func Comment(id, body string, replies ...Thing) Thing {
	data := map[string]any{
		"id":               id,
		"name":             "t1_" + id,
		"author":           "user_" + id,
		"body":             body,
		"score":            1,
		"created_utc":      1714564900.0,
		"parent_id":        "t3_post",
		"link_id":          "t3_post",
		"subreddit":        "python",
		"permalink":        "/r/python/comments/post/_/" + id + "/",
		"is_submitter":     false,
		"controversiality": 0,
		"stickied":         false,
		"replies":          "",
	}
	if len(replies) > 0 {
		data["replies"] = Listing(replies...)
	}
	return Thing{"kind": "t1", "data": data}
}

// WithData returns a copy of thing with data fields overridden.
func WithData(thing Thing, fields map[string]any) Thing {
	src := thing["data"].(map[string]any)
	data := make(map[string]any, len(src)+len(fields))
	for k, v := range src {
		data[k] = v
	}
	for k, v := range fields {
		data[k] = v
	}
	return Thing{"kind": thing["kind"], "data": data}
}

// More builds a "more" placeholder thing.
func More(ids ...string) Thing {
	return Thing{"kind": "more", "data": map[string]any{
		"id":       "more1",
		"name":     "t1_more1",
		"count":    len(ids),
		"children": ids,
	}}
}

// Account builds a t2 thing.
func Account(name string) Thing {
	return Thing{"kind": "t2", "data": map[string]any{
		"id":                 "u" + name,
		"name":               name,
		"created_utc":        1262304000.0,
		"comment_karma":      120,
		"link_karma":         30,
		"verified":           true,
		"has_verified_email": true,
	}}
}

// SubredditAbout builds a t5 thing.
func SubredditAbout(name string) Thing {
	return Thing{"kind": "t5", "data": map[string]any{
		"id":                 "2qh0y",
		"name":               "t5_2qh0y",
		"display_name":       name,
		"title":              name + " community",
		"public_description": "About " + name,
		"subscribers":        1200000,
		"active_user_count":  800,
		"over18":             false,
		"subreddit_type":     "public",
		"created_utc":        1201233135.0,
		"url":                "/r/" + name + "/",
	}}
}

// Listing wraps children in a Listing thing.
func Listing(children ...Thing) Thing {
	if children == nil {
		children = []Thing{}
	}
	return Thing{"kind": "Listing", "data": map[string]any{
		"after":    nil,
		"before":   nil,
		"dist":     len(children),
		"children": children,
	}}
}

// ThreadPayload builds the two-element array returned by /comments/{id}.json.
func ThreadPayload(post Thing, comments ...Thing) []any {
	return []any{Listing(post), Listing(comments...)}
}

// MustJSON marshals v or fails the test.
func MustJSON(t testing.TB, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return string(b)
}
