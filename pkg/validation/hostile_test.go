package validation

import (
	"errors"
	"strings"
	"testing"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// hostile inputs that must never reach a URL path or query.
var hostile = []string{
	"golang'; DROP TABLE--",
	"golang' OR '1'='1",
	"../../etc/passwd",
	`..\..\windows\system32`,
	"test/../admin",
	"golang\x00admin",
	"test\u202eadmin",
	"café",
	"тест",
	"🚀rocket",
	"test\nsub",
	"test\rsub",
	"test\tsub",
	"test sub",
	"test<script>alert(1)</script>",
	"test%00admin",
	"test&lt;sub",
	"test.sub",
	"test+sub",
	"test@sub",
	"test#sub",
	"test?sub=1",
	strings.Repeat("a", 1000),
}

func TestHostileIdentifiersRejected(t *testing.T) {
	for _, in := range hostile {
		t.Run(in, func(t *testing.T) {
			var cfgErr *pkgerrs.ConfigError
			if err := ValidateSubredditName(NormalizeSubreddit(in)); !errors.As(err, &cfgErr) {
				t.Errorf("subreddit %q accepted", in)
			}
			if err := ValidateUsername(NormalizeUsername(in)); !errors.As(err, &cfgErr) {
				t.Errorf("username %q accepted", in)
			}
			if err := ValidatePostID(NormalizePostID(in)); !errors.As(err, &cfgErr) {
				t.Errorf("post id %q accepted", in)
			}
			if IsValidFullname(in) {
				t.Errorf("fullname %q accepted", in)
			}
		})
	}
}

func TestHostileUserAgents(t *testing.T) {
	tests := []string{
		"bot/1.0\r\nX-Injected: yes",
		"bot/1.0\nHost: evil.example",
		"bot/1.0\r",
		strings.Repeat("x", maxUserAgentLength+1),
	}
	for _, ua := range tests {
		if err := ValidateUserAgent(ua); err == nil {
			t.Errorf("ValidateUserAgent(%q) accepted", ua)
		}
	}
}

func TestPostsRequestRejectsHostileSort(t *testing.T) {
	for _, sort := range []string{"hot/../../api/v1/me", "new?limit=1000", "top\n", "RISING;"} {
		req := types.PostsRequest{Subreddit: "golang", Sort: sort}
		if err := PostsRequest(&req); err == nil {
			t.Errorf("sort %q accepted", sort)
		}
	}
}
