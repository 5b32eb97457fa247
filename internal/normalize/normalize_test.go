package normalize

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jamesprial/go-reddit-collector/internal/testutil"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	return json.RawMessage(testutil.MustJSON(t, v))
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  hello  ", "hello"},
		{"Q&amp;A", "Q&A"},
		{"&lt;b&gt;bold&lt;/b&gt;", "<b>bold</b>"},
		{"\n\t", ""},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPosts_Listing(t *testing.T) {
	payload := raw(t, testutil.Listing(
		testutil.Link("a1", "python", "First &amp; best", nil),
		testutil.Link("a2", "python", "Second", map[string]any{"author": "[deleted]", "selftext": "[removed]"}),
		testutil.Link("", "python", "No id", nil),
		testutil.Link("a3", "python", "  Third  ", map[string]any{"is_self": true, "over_18": true, "distinguished": "moderator"}),
	))

	posts, err := Posts(payload)
	if err != nil {
		t.Fatalf("Posts() error = %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("Posts() returned %d posts, want 3", len(posts))
	}

	gotTitles := []string{posts[0].Title, posts[1].Title, posts[2].Title}
	if diff := cmp.Diff([]string{"First & best", "Second", "Third"}, gotTitles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if !posts[1].AuthorRemoved || posts[1].Author != "" {
		t.Errorf("deleted author = %q removed=%v", posts[1].Author, posts[1].AuthorRemoved)
	}
	if posts[1].SelfText != "" {
		t.Errorf("removed selftext = %q, want empty", posts[1].SelfText)
	}
	if !posts[2].IsSelf || !posts[2].Over18 || posts[2].Distinguished != "moderator" {
		t.Errorf("flags not carried: %+v", posts[2])
	}
	for _, p := range posts {
		if p.Subreddit != "python" {
			t.Errorf("post %s subreddit = %q", p.ID, p.Subreddit)
		}
	}
}

func TestPost_SingleThingAndEmpty(t *testing.T) {
	p, err := Post(raw(t, testutil.Link("x9", "golang", "Hi", nil)))
	if err != nil || p == nil || p.ID != "x9" {
		t.Fatalf("Post() = %+v, %v", p, err)
	}

	p, err = Post(raw(t, testutil.Listing()))
	if err != nil || p != nil {
		t.Fatalf("Post(empty listing) = %+v, %v", p, err)
	}
}

func TestPosts_Idempotent(t *testing.T) {
	first, err := Posts(raw(t, testutil.Listing(
		testutil.Link("a1", "python", "Tom &amp; Jerry", map[string]any{"author": nil}),
		testutil.Link("a2", "python", "Plain", map[string]any{"distinguished": "admin", "locked": true}),
	)))
	if err != nil {
		t.Fatalf("Posts() error = %v", err)
	}

	second, err := Posts(raw(t, first))
	if err != nil {
		t.Fatalf("Posts(canonical) error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("normalizing twice changed the records (-first +second):\n%s", diff)
	}

	one, err := Post(raw(t, first[1]))
	if err != nil {
		t.Fatalf("Post(canonical object) error = %v", err)
	}
	if diff := cmp.Diff(first[1], *one); diff != "" {
		t.Errorf("plain object mismatch (-want +got):\n%s", diff)
	}
}

func TestComments_DeletionFiltering(t *testing.T) {
	payload := raw(t, testutil.Listing(
		testutil.Comment("c1", "[deleted]"),
		testutil.Comment("c2", "[removed]"),
		testutil.Comment("c3", ""),
		testutil.Comment("c4", "hello"),
	))

	comments, _, err := Comments(payload, Options{})
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if len(comments) != 1 || comments[0].Body != "hello" {
		t.Fatalf("Comments() = %+v, want exactly one \"hello\"", comments)
	}

	kept, _, err := Comments(payload, Options{KeepRemoved: true})
	if err != nil {
		t.Fatalf("Comments(KeepRemoved) error = %v", err)
	}
	if len(kept) != 4 {
		t.Fatalf("Comments(KeepRemoved) returned %d, want 4", len(kept))
	}
	for _, c := range kept[:3] {
		if !c.BodyRemoved || c.Body != "" {
			t.Errorf("comment %s: Body=%q BodyRemoved=%v", c.ID, c.Body, c.BodyRemoved)
		}
	}
}

func TestComments_NullBodyAndAuthor(t *testing.T) {
	payload := raw(t, testutil.Listing(
		testutil.WithData(testutil.Comment("c1", "x"), map[string]any{"body": nil}),
		testutil.WithData(testutil.Comment("c2", "still here"), map[string]any{"author": nil}),
	))
	comments, _, err := Comments(payload, Options{})
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "c2" {
		t.Fatalf("Comments() = %+v", comments)
	}
	if !comments[0].AuthorRemoved || comments[0].Author != "" {
		t.Errorf("null author not marked removed: %+v", comments[0])
	}
}

func TestComments_DepthFirst(t *testing.T) {
	payload := raw(t, testutil.Listing(
		testutil.Comment("a", "root a",
			testutil.Comment("a1", "reply a1",
				testutil.Comment("a1x", "reply a1x"),
			),
			testutil.Comment("a2", "reply a2"),
		),
		testutil.Comment("b", "root b"),
	))

	comments, _, err := Comments(payload, Options{})
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}

	type idDepth struct {
		ID    string
		Depth int
	}
	var got []idDepth
	for _, c := range comments {
		got = append(got, idDepth{c.ID, c.Depth})
	}
	want := []idDepth{{"a", 0}, {"a1", 1}, {"a1x", 2}, {"a2", 1}, {"b", 0}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flatten order mismatch (-want +got):\n%s", diff)
	}
}

func TestComments_WireDepthWins(t *testing.T) {
	payload := raw(t, testutil.Listing(
		testutil.WithData(testutil.Comment("deep", "x"), map[string]any{"depth": 4}),
	))
	comments, _, err := Comments(payload, Options{})
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if len(comments) != 1 || comments[0].Depth != 4 {
		t.Fatalf("Comments() = %+v, want depth 4", comments)
	}
}

func TestComments_RepliesOfDroppedCommentSurvive(t *testing.T) {
	payload := raw(t, testutil.Listing(
		testutil.Comment("gone", "[deleted]",
			testutil.Comment("child", "answer"),
		),
	))
	comments, _, err := Comments(payload, Options{})
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "child" || comments[0].Depth != 1 {
		t.Fatalf("Comments() = %+v", comments)
	}
}

func TestComments_SkipsMissingID(t *testing.T) {
	payload := raw(t, testutil.Listing(
		testutil.Comment("", "no id"),
		testutil.Comment("ok", "has id"),
	))
	comments, _, err := Comments(payload, Options{})
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	if len(comments) != 1 || comments[0].ID != "ok" {
		t.Fatalf("Comments() = %+v", comments)
	}
}

func TestComments_Idempotent(t *testing.T) {
	first, _, err := Comments(raw(t, testutil.Listing(
		testutil.Comment("a", "x &gt; y", testutil.Comment("b", "nested")),
		testutil.WithData(testutil.Comment("c", "anon"), map[string]any{"author": "[deleted]"}),
	)), Options{})
	if err != nil {
		t.Fatalf("Comments() error = %v", err)
	}
	second, _, err := Comments(raw(t, first), Options{})
	if err != nil {
		t.Fatalf("Comments(canonical) error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("normalizing twice changed the records (-first +second):\n%s", diff)
	}
}

func TestCanonicalTextKeepsLiteralEntities(t *testing.T) {
	// Reddit escapes once, so a literal "&amp;" arrives as "&amp;amp;".
	posts, err := Posts(raw(t, testutil.Listing(
		testutil.Link("a1", "python", "AT&amp;amp;T  ", map[string]any{"selftext": "use &amp;lt;b&amp;gt;"}),
	)))
	if err != nil || len(posts) != 1 {
		t.Fatalf("Posts() = %+v, %v", posts, err)
	}
	if posts[0].Title != "AT&amp;T" || posts[0].SelfText != "use &lt;b&gt;" {
		t.Fatalf("first pass = %q / %q", posts[0].Title, posts[0].SelfText)
	}
	for pass := 2; pass <= 3; pass++ {
		again, err := Posts(raw(t, posts))
		if err != nil {
			t.Fatalf("pass %d error = %v", pass, err)
		}
		if diff := cmp.Diff(posts, again); diff != "" {
			t.Errorf("pass %d changed the posts (-want +got):\n%s", pass, diff)
		}
	}

	comments, _, err := Comments(raw(t, testutil.Listing(testutil.Comment("c1", "x &amp;gt; y"))), Options{})
	if err != nil || len(comments) != 1 || comments[0].Body != "x &gt; y" {
		t.Fatalf("Comments() = %+v, %v", comments, err)
	}
	again, _, err := Comments(raw(t, comments), Options{})
	if err != nil {
		t.Fatalf("Comments(canonical) error = %v", err)
	}
	if diff := cmp.Diff(comments, again); diff != "" {
		t.Errorf("re-normalizing comments changed them (-want +got):\n%s", diff)
	}

	sub, err := Subreddit(raw(t, testutil.WithData(testutil.SubredditAbout("python"), map[string]any{"title": "R&amp;amp;D"})))
	if err != nil || sub == nil || sub.Title != "R&amp;D" {
		t.Fatalf("Subreddit() = %+v, %v", sub, err)
	}
	subAgain, err := Subreddit(raw(t, sub))
	if err != nil || subAgain == nil || subAgain.Title != "R&amp;D" {
		t.Errorf("Subreddit(canonical) = %+v, %v", subAgain, err)
	}
}

func TestWrappedThingsAreUnescaped(t *testing.T) {
	p, err := Post(json.RawMessage(`{"kind":"t3","data":{"id":"a1","title":"Q&amp;A"}}`))
	if err != nil || p == nil || p.Title != "Q&A" {
		t.Fatalf("Post(t3) = %+v, %v", p, err)
	}
	plain, err := Post(json.RawMessage(`{"id":"a1","title":"Q&amp;A"}`))
	if err != nil || plain == nil || plain.Title != "Q&amp;A" {
		t.Fatalf("Post(canonical) = %+v, %v", plain, err)
	}
}

func TestThread(t *testing.T) {
	payload := raw(t, testutil.ThreadPayload(
		testutil.Link("p1", "python", "Thread title", nil),
		testutil.Comment("c1", "top", testutil.Comment("c2", "reply")),
		testutil.Comment("c3", "[removed]"),
		testutil.More("m1", "m2"),
	))

	thread, err := Thread(payload, Options{})
	if err != nil {
		t.Fatalf("Thread() error = %v", err)
	}
	if thread.Post == nil || thread.Post.ID != "p1" {
		t.Fatalf("Thread().Post = %+v", thread.Post)
	}
	var ids []string
	for _, c := range thread.Comments {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"c1", "c2"}, ids); diff != "" {
		t.Errorf("comment ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"m1", "m2"}, thread.MoreIDs); diff != "" {
		t.Errorf("more ids mismatch (-want +got):\n%s", diff)
	}
}

func TestThread_NestedMore(t *testing.T) {
	nested := testutil.Comment("c1", "top")
	nested = testutil.WithData(nested, map[string]any{"replies": testutil.Listing(
		testutil.Comment("c2", "reply"),
		testutil.More("deep1"),
	)})
	thread, err := Thread(raw(t, testutil.ThreadPayload(testutil.Link("p1", "python", "t", nil), nested)), Options{})
	if err != nil {
		t.Fatalf("Thread() error = %v", err)
	}
	if diff := cmp.Diff([]string{"deep1"}, thread.MoreIDs); diff != "" {
		t.Errorf("more ids mismatch (-want +got):\n%s", diff)
	}
	if len(thread.Comments) != 2 {
		t.Errorf("got %d comments, want 2", len(thread.Comments))
	}
}

func TestUser(t *testing.T) {
	u, err := User(raw(t, testutil.Account("spez")))
	if err != nil {
		t.Fatalf("User() error = %v", err)
	}
	want := &types.User{
		Name:             "spez",
		ID:               "uspez",
		CreatedUTC:       1262304000,
		CommentKarma:     120,
		LinkKarma:        30,
		Verified:         true,
		HasVerifiedEmail: true,
	}
	if diff := cmp.Diff(want, u); diff != "" {
		t.Errorf("User() mismatch (-want +got):\n%s", diff)
	}

	again, err := User(raw(t, u))
	if err != nil {
		t.Fatalf("User(canonical) error = %v", err)
	}
	if diff := cmp.Diff(u, again); diff != "" {
		t.Errorf("User() not idempotent (-first +second):\n%s", diff)
	}
}

func TestUser_MissingID(t *testing.T) {
	u, err := User(json.RawMessage(`{"kind":"t2","data":{"name":"ghost","is_suspended":true}}`))
	if err != nil || u != nil {
		t.Fatalf("User() = %+v, %v; want nil, nil", u, err)
	}
}

func TestSubreddit(t *testing.T) {
	s, err := Subreddit(raw(t, testutil.SubredditAbout("python")))
	if err != nil {
		t.Fatalf("Subreddit() error = %v", err)
	}
	if s == nil || s.Name != "python" || s.Subscribers != 1200000 || s.ActiveUsers != 800 {
		t.Fatalf("Subreddit() = %+v", s)
	}

	again, err := Subreddit(raw(t, s))
	if err != nil {
		t.Fatalf("Subreddit(canonical) error = %v", err)
	}
	if diff := cmp.Diff(s, again); diff != "" {
		t.Errorf("Subreddit() not idempotent (-first +second):\n%s", diff)
	}
}

func TestMalformedPayload(t *testing.T) {
	for _, in := range []string{``, `<html>`, `{"kind":"Listing","data":`} {
		_, err := Posts(json.RawMessage(in))
		var pe *pkgerrs.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("Posts(%q) error = %v, want ParseError", in, err)
		}
	}
}

func TestThings_Shapes(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantKinds []string
	}{
		{"listing", `{"kind":"Listing","data":{"children":[{"kind":"t3","data":{}},{"kind":"t1","data":{}}]}}`, []string{"t3", "t1"}},
		{"single", `{"kind":"t2","data":{"id":"x"}}`, []string{"t2"}},
		{"array", `[{"kind":"Listing","data":{"children":[{"kind":"t3","data":{}}]}},{"kind":"t1","data":{}}]`, []string{"t3", "t1"}},
		{"plain", `{"id":"abc","title":"x"}`, []string{""}},
		{"empty listing", `{"kind":"Listing","data":{"children":[]}}`, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			things, err := Things(json.RawMessage(tt.payload))
			if err != nil {
				t.Fatalf("Things() error = %v", err)
			}
			kinds := []string{}
			for _, th := range things {
				kinds = append(kinds, th.Kind)
			}
			if diff := cmp.Diff(tt.wantKinds, kinds); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommentFromData_Typed(t *testing.T) {
	body := "typed &amp; decoded"
	depth := 2
	c, ok := CommentFromData(&types.CommentData{
		ThingData: types.ThingData{ID: "t1x"},
		Author:    "someone",
		Body:      &body,
		Depth:     &depth,
	}, 0, Options{})
	if !ok {
		t.Fatal("CommentFromData() dropped a valid comment")
	}
	if c.Body != "typed & decoded" || c.Depth != 2 || c.Author != "someone" {
		t.Errorf("CommentFromData() = %+v", c)
	}

	if _, ok := CommentFromData(nil, 0, Options{}); ok {
		t.Error("CommentFromData(nil) reported ok")
	}
}
