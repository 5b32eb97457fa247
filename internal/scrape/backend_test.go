package scrape

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/jamesprial/go-reddit-collector/internal/normalize"
	"github.com/jamesprial/go-reddit-collector/internal/resilient"
	"github.com/jamesprial/go-reddit-collector/internal/testutil"
	"github.com/jamesprial/go-reddit-collector/internal/useragent"
	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

type fixture struct {
	server  *testutil.MockServer
	clock   *testutil.FakeClock
	rc      *resilient.Client
	backend *Backend
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	ms := testutil.NewMockServer(t)
	clock := testutil.NewFakeClock()
	p := resilient.DefaultPolicy()
	p.UseRandomDelays = false
	rc := resilient.New(resilient.Options{Policy: p, Clock: clock, Rand: testutil.FixedRand(0)})

	i := 0
	cfg := Config{
		BaseURL:    ms.URL(),
		HTTPClient: ms.Client(),
		Agents: useragent.New(
			useragent.WithPool("agent-one", "agent-two", "agent-three"),
			useragent.WithPicker(func(n int) int {
				i++
				return i % n
			}),
		),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return &fixture{server: ms, clock: clock, rc: rc, backend: New(rc, cfg)}
}

func TestSubredditPosts(t *testing.T) {
	f := newFixture(t, nil)
	var children []testutil.Thing
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		children = append(children, testutil.Link(id, "python", "title "+id, nil))
	}
	f.server.OnJSON("/r/python/hot.json", testutil.MustJSON(t, testutil.Listing(children...)))

	posts, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "python", Sort: "hot", Limit: 5})
	require.NoError(t, err)
	require.Len(t, posts, 5)

	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
		if p.Subreddit != "python" {
			t.Errorf("post %s subreddit = %q", p.ID, p.Subreddit)
		}
	}
	if diff := cmp.Diff([]string{"p1", "p2", "p3", "p4", "p5"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	req, err := f.server.LastRequest("/r/python/hot.json")
	require.NoError(t, err)
	if req.Query.Get("limit") != "5" {
		t.Errorf("limit = %q", req.Query.Get("limit"))
	}
}

func TestLimitClamped(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnJSON("/r/python/new.json", testutil.MustJSON(t, testutil.Listing()))

	_, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "python", Sort: "new", Limit: 1000})
	require.NoError(t, err)
	req, _ := f.server.LastRequest("/r/python/new.json")
	if req.Query.Get("limit") != "100" {
		t.Errorf("limit = %q, want 100", req.Query.Get("limit"))
	}
}

func TestUserAgentRotatesPerCall(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnJSON("/r/python/hot.json", testutil.MustJSON(t, testutil.Listing()))
	ctx := context.Background()

	for range 2 {
		_, err := f.backend.SubredditPosts(ctx, types.PostsRequest{Subreddit: "python"})
		require.NoError(t, err)
	}
	reqs := f.server.Requests()
	require.Len(t, reqs, 2)
	first, second := reqs[0].Headers.Get("User-Agent"), reqs[1].Headers.Get("User-Agent")
	if first == "" || first == second {
		t.Errorf("User-Agent not rotated: %q then %q", first, second)
	}
}

func TestNotFoundIsNoResult(t *testing.T) {
	f := newFixture(t, nil)

	user, err := f.backend.User(context.Background(), "nobody")
	if err != nil || user != nil {
		t.Fatalf("User() = %+v, %v; want nil, nil", user, err)
	}
	if got := f.server.CallCount("/user/nobody/about.json"); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestRateLimitedThenSuccess(t *testing.T) {
	f := newFixture(t, nil)
	f.server.On("/r/python/top.json",
		testutil.Response{Status: http.StatusTooManyRequests},
		testutil.Response{Status: http.StatusOK, Body: testutil.MustJSON(t, testutil.Listing(testutil.Link("a", "python", "t", nil)))},
	)

	posts, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "python", Sort: "top"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	if got := f.server.CallCount("/r/python/top.json"); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
	if f.clock.TotalSlept() < time.Second {
		t.Errorf("slept %v, want at least the 1s back-off", f.clock.TotalSlept())
	}
}

func TestForbiddenRetriesWithAlternateHeaders(t *testing.T) {
	f := newFixture(t, nil)
	f.server.On("/r/private/hot.json",
		testutil.Response{Status: http.StatusForbidden, Body: `{"reason":"private"}`},
		testutil.Response{Status: http.StatusOK, Body: testutil.MustJSON(t, testutil.Listing(testutil.Link("a", "private", "t", nil)))},
	)

	posts, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "private"})
	require.NoError(t, err)
	require.Len(t, posts, 1)

	reqs := f.server.Requests()
	require.Len(t, reqs, 2)
	if reqs[0].Headers.Get("X-Requested-With") != "" {
		t.Error("first attempt carried alternate headers")
	}
	alt := reqs[1].Headers
	if alt.Get("X-Requested-With") != "XMLHttpRequest" || alt.Get("Referer") != "https://www.reddit.com/" {
		t.Errorf("alternate headers missing: %v", alt)
	}
	if alt.Get("Accept") != "application/json, text/plain, */*" {
		t.Errorf("Accept = %q", alt.Get("Accept"))
	}
}

func TestForbiddenTwiceIsNoResult(t *testing.T) {
	f := newFixture(t, nil)
	f.server.On("/r/private/hot.json", testutil.Response{Status: http.StatusForbidden})

	posts, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "private"})
	if err != nil || posts != nil {
		t.Fatalf("SubredditPosts() = %v, %v; want nil, nil", posts, err)
	}
}

func TestServerErrorsExhaustRetries(t *testing.T) {
	f := newFixture(t, nil)
	f.server.On("/r/python/hot.json", testutil.Response{Status: http.StatusServiceUnavailable})

	_, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "python"})
	var failed *pkgerrs.RequestFailedError
	require.True(t, errors.As(err, &failed), "error = %v", err)
	if failed.Attempts != resilient.DefaultMaxRetries+1 {
		t.Errorf("Attempts = %d", failed.Attempts)
	}
	if got := f.server.CallCount("/r/python/hot.json"); got != resilient.DefaultMaxRetries+1 {
		t.Errorf("calls = %d", got)
	}
}

func TestHTMLPayloadIsNoResult(t *testing.T) {
	f := newFixture(t, nil)
	f.server.On("/r/python/hot.json", testutil.Response{Status: http.StatusOK, Body: "<html>blocked</html>"})

	posts, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "python"})
	if err != nil || posts != nil {
		t.Fatalf("SubredditPosts() = %v, %v; want nil, nil", posts, err)
	}
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnJSON("/search.json", testutil.MustJSON(t, testutil.Listing(testutil.Link("g", "golang", "global", nil))))
	f.server.OnJSON("/r/golang/search.json", testutil.MustJSON(t, testutil.Listing(testutil.Link("s", "golang", "scoped", nil))))
	ctx := context.Background()

	posts, err := f.backend.Search(ctx, types.SearchRequest{Query: "channels", Sort: "new", TimeFilter: "week", Limit: 10})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	req, _ := f.server.LastRequest("/search.json")
	want := map[string]string{"q": "channels", "sort": "new", "t": "week", "limit": "10", "restrict_sr": ""}
	for k, v := range want {
		if got := req.Query.Get(k); got != v {
			t.Errorf("global %s = %q, want %q", k, got, v)
		}
	}

	posts, err = f.backend.Search(ctx, types.SearchRequest{Query: "channels", Subreddit: "golang"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	req, _ = f.server.LastRequest("/r/golang/search.json")
	if req.Query.Get("restrict_sr") != "on" {
		t.Errorf("restrict_sr = %q", req.Query.Get("restrict_sr"))
	}
}

func TestAboutLookupsAreCached(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnJSON("/r/python/about.json", testutil.MustJSON(t, testutil.SubredditAbout("python")))
	f.server.OnJSON("/user/spez/about.json", testutil.MustJSON(t, testutil.Account("spez")))
	ctx := context.Background()

	for range 3 {
		sub, err := f.backend.Subreddit(ctx, "python")
		require.NoError(t, err)
		require.Equal(t, "python", sub.Name)
		user, err := f.backend.User(ctx, "spez")
		require.NoError(t, err)
		require.Equal(t, "spez", user.Name)
	}
	if got := f.server.CallCount("/r/python/about.json"); got != 1 {
		t.Errorf("subreddit about fetched %d times, want 1", got)
	}
	if got := f.server.CallCount("/user/spez/about.json"); got != 1 {
		t.Errorf("user about fetched %d times, want 1", got)
	}
}

func TestThread(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnJSON("/comments/p1.json", testutil.MustJSON(t, testutil.ThreadPayload(
		testutil.Link("p1", "python", "thread", nil),
		testutil.Comment("c1", "top", testutil.Comment("c2", "[deleted]")),
		testutil.Comment("c3", "second"),
	)))

	thread, err := f.backend.Thread(context.Background(), "p1", 50)
	require.NoError(t, err)
	require.NotNil(t, thread.Post)
	var ids []string
	for _, c := range thread.Comments {
		ids = append(ids, c.ID)
	}
	if diff := cmp.Diff([]string{"c1", "c3"}, ids); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}
}

func TestThread_KeepRemoved(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.Comments = normalize.Options{KeepRemoved: true} })
	f.server.OnJSON("/comments/p1.json", testutil.MustJSON(t, testutil.ThreadPayload(
		testutil.Link("p1", "python", "thread", nil),
		testutil.Comment("c1", "[removed]"),
	)))

	thread, err := f.backend.Thread(context.Background(), "p1", 50)
	require.NoError(t, err)
	require.Len(t, thread.Comments, 1)
	if !thread.Comments[0].BodyRemoved {
		t.Error("kept comment not marked removed")
	}
}

func TestUserListings(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnJSON("/user/spez/submitted.json", testutil.MustJSON(t, testutil.Listing(testutil.Link("a", "announcements", "t", nil))))
	f.server.OnJSON("/user/spez/comments.json", testutil.MustJSON(t, testutil.Listing(
		testutil.Comment("c1", "kept"),
		testutil.Comment("c2", "[removed]"),
	)))
	ctx := context.Background()
	req := types.UserListingRequest{Username: "spez", Sort: "top", Limit: 3}

	posts, err := f.backend.UserPosts(ctx, req)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	last, _ := f.server.LastRequest("/user/spez/submitted.json")
	if last.Query.Get("sort") != "top" || last.Query.Get("limit") != "3" {
		t.Errorf("submitted query = %v", last.Query)
	}

	comments, err := f.backend.UserComments(ctx, req)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	require.Equal(t, "c1", comments[0].ID)
}

func TestExhaustedRateHeadersDeferNextRequest(t *testing.T) {
	f := newFixture(t, nil)
	f.server.On("/r/python/hot.json", testutil.Response{
		Status:  http.StatusOK,
		Body:    testutil.MustJSON(t, testutil.Listing()),
		Headers: testutil.RateLimitHeaders(0, 600, 45*time.Second),
	})

	start := f.clock.Now()
	_, err := f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "python"})
	require.NoError(t, err)

	deferred := f.rc.Status().DeferredUntil
	if want := start.Add(45 * time.Second); deferred.Before(want) {
		t.Fatalf("DeferredUntil = %v, want at least %v", deferred, want)
	}

	_, err = f.backend.SubredditPosts(context.Background(), types.PostsRequest{Subreddit: "python"})
	require.NoError(t, err)
	if !f.clock.Now().After(deferred) && !f.clock.Now().Equal(deferred) {
		t.Errorf("second request went out at %v, before %v", f.clock.Now(), deferred)
	}
}

func TestComment(t *testing.T) {
	f := newFixture(t, nil)
	f.server.OnJSON("/api/info.json", testutil.MustJSON(t, testutil.Listing(testutil.Comment("c7", "found it"))))

	c, err := f.backend.Comment(context.Background(), "c7")
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Equal(t, "found it", c.Body)
	req, _ := f.server.LastRequest("/api/info.json")
	require.Equal(t, "t1_c7", req.Query.Get("id"))
}
