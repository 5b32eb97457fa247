package validation

import (
	"errors"
	"strings"
	"testing"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

func TestIsValidBase36(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid lowercase", "abc123", true},
		{"valid numbers", "123456", true},
		{"invalid uppercase", "ABC123", false},
		{"invalid underscore", "abc_123", false},
		{"empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidBase36(tt.input); got != tt.want {
				t.Errorf("IsValidBase36(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidSubreddit(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"lowercase", "python", true},
		{"underscore", "learn_python", true},
		{"two letters", "tf", true},
		{"max length", "a123456789012345678_x", true},
		{"too long", "a1234567890123456789xy", false},
		{"hyphen", "ask-reddit", false},
		{"space", "ask reddit", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSubreddit(tt.input); got != tt.want {
				t.Errorf("IsValidSubreddit(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsValidUsernameAndFullname(t *testing.T) {
	if !IsValidUsername("spez") || !IsValidUsername("some-user_1") {
		t.Error("expected ordinary usernames to be valid")
	}
	if IsValidUsername("ab") || IsValidUsername("has space") {
		t.Error("expected short or spaced usernames to be invalid")
	}
	if !IsValidFullname("t3_abc123") || IsValidFullname("t9_abc") || IsValidFullname("abc123") {
		t.Error("fullname validation mismatch")
	}
}

func TestNormalizers(t *testing.T) {
	tests := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"subreddit prefix", NormalizeSubreddit, "r/python", "python"},
		{"subreddit slash prefix", NormalizeSubreddit, " /r/golang ", "golang"},
		{"subreddit bare", NormalizeSubreddit, "rust", "rust"},
		{"username prefix", NormalizeUsername, "u/spez", "spez"},
		{"username slash prefix", NormalizeUsername, "/u/spez", "spez"},
		{"post fullname", NormalizePostID, "t3_1abcde", "1abcde"},
		{"post bare", NormalizePostID, "1abcde", "1abcde"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, DefaultLimit},
		{0, DefaultLimit},
		{1, 1},
		{5, 5},
		{100, 100},
		{101, 100},
		{1000, 100},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestValidateUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		ua      string
		wantErr bool
	}{
		{"ordinary", "Mozilla/5.0 (X11; Linux x86_64)", false},
		{"empty", "", true},
		{"header injection", "agent\r\nX-Evil: 1", true},
		{"too long", strings.Repeat("a", maxUserAgentLength+1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUserAgent(tt.ua)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateUserAgent() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostsRequest(t *testing.T) {
	req := types.PostsRequest{Subreddit: "r/python", Limit: 500}
	if err := PostsRequest(&req); err != nil {
		t.Fatalf("PostsRequest() error = %v", err)
	}
	if req.Subreddit != "python" || req.Sort != types.SortHot || req.Limit != MaxLimit {
		t.Errorf("normalized request = %+v", req)
	}

	bad := types.PostsRequest{Subreddit: "python", Sort: "controversial"}
	err := PostsRequest(&bad)
	var cfgErr *pkgerrs.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "sort" {
		t.Errorf("expected sort ConfigError, got %v", err)
	}

	empty := types.PostsRequest{}
	if err := PostsRequest(&empty); err == nil {
		t.Error("expected error for empty subreddit")
	}
}

func TestSearchRequest(t *testing.T) {
	tests := []struct {
		name      string
		req       types.SearchRequest
		wantErr   string
		wantSort  string
		wantTime  string
		wantLimit int
	}{
		{
			name:      "defaults",
			req:       types.SearchRequest{Query: "  golang generics "},
			wantSort:  "relevance",
			wantTime:  "all",
			wantLimit: DefaultLimit,
		},
		{
			name:      "scoped",
			req:       types.SearchRequest{Query: "tui", Subreddit: "r/golang", Sort: "top", TimeFilter: "week", Limit: 7},
			wantSort:  "top",
			wantTime:  "week",
			wantLimit: 7,
		},
		{name: "empty query", req: types.SearchRequest{Query: "   "}, wantErr: "query"},
		{name: "bad sort", req: types.SearchRequest{Query: "x", Sort: "rising"}, wantErr: "sort"},
		{name: "bad time", req: types.SearchRequest{Query: "x", TimeFilter: "decade"}, wantErr: "time_filter"},
		{name: "bad subreddit", req: types.SearchRequest{Query: "x", Subreddit: "no spaces"}, wantErr: "subreddit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := SearchRequest(&req)
			if tt.wantErr != "" {
				var cfgErr *pkgerrs.ConfigError
				if !errors.As(err, &cfgErr) || cfgErr.Field != tt.wantErr {
					t.Fatalf("expected ConfigError on %s, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SearchRequest() error = %v", err)
			}
			if req.Sort != tt.wantSort || req.TimeFilter != tt.wantTime || req.Limit != tt.wantLimit {
				t.Errorf("normalized = %+v", req)
			}
		})
	}
}

func TestUserListingRequest(t *testing.T) {
	req := types.UserListingRequest{Username: "u/spez"}
	if err := UserListingRequest(&req); err != nil {
		t.Fatalf("UserListingRequest() error = %v", err)
	}
	if req.Username != "spez" || req.Sort != "new" || req.Limit != DefaultLimit {
		t.Errorf("normalized = %+v", req)
	}

	bad := types.UserListingRequest{Username: "spez", Sort: "rising"}
	if err := UserListingRequest(&bad); err == nil {
		t.Error("expected error for rising sort on a user listing")
	}
}

func TestValidatePostID(t *testing.T) {
	if err := ValidatePostID("1abcde"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePostID(""); err == nil {
		t.Error("expected error for empty id")
	}
	if err := ValidatePostID("ABC!"); err == nil {
		t.Error("expected error for non-base36 id")
	}
}
