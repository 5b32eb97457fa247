// Package validation checks caller-supplied request parameters before any
// network traffic is generated.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

const (
	// MaxLimit is the largest page Reddit returns for a single listing call.
	MaxLimit = 100
	// DefaultLimit is used when a request leaves its limit at zero.
	DefaultLimit = 25

	maxUserAgentLength = 256
	maxQueryLength     = 512
)

var (
	// base36Regex matches base36 encoded IDs (0-9, a-z)
	base36Regex = regexp.MustCompile(`^[0-9a-z]+$`)

	// subredditRegex matches subreddit names (alphanumeric + underscore, 2-21 chars
	// to admit legacy two-letter communities such as "tf")
	subredditRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{2,21}$`)

	// usernameRegex matches Reddit usernames (3-20 chars, alphanumeric + underscore + hyphen)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

	// fullnameRegex matches Reddit fullname IDs: t[1-6]_[base36_id]
	fullnameRegex = regexp.MustCompile(`^t[1-6]_[0-9a-z]+$`)
)

var (
	listingSorts = map[string]bool{types.SortHot: true, types.SortNew: true, types.SortTop: true, types.SortRising: true}
	searchSorts  = map[string]bool{"relevance": true, "hot": true, "top": true, "new": true, "comments": true}
	userSorts    = map[string]bool{"new": true, "hot": true, "top": true, "controversial": true}
	timeFilters  = map[string]bool{"hour": true, "day": true, "week": true, "month": true, "year": true, "all": true}
)

// IsValidBase36 checks if a string is a valid base36 encoded ID.
func IsValidBase36(s string) bool {
	return s != "" && base36Regex.MatchString(s)
}

// IsValidSubreddit checks if a string is a valid subreddit name.
func IsValidSubreddit(s string) bool {
	return subredditRegex.MatchString(s)
}

// IsValidUsername checks if a string is a valid Reddit username.
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsValidFullname checks if a string is a valid Reddit fullname ID.
func IsValidFullname(s string) bool {
	return fullnameRegex.MatchString(s)
}

// NormalizeSubreddit strips an optional "r/" or "/r/" prefix.
func NormalizeSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	return strings.TrimPrefix(name, "r/")
}

// NormalizeUsername strips an optional "u/" or "/u/" prefix.
func NormalizeUsername(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	return strings.TrimPrefix(name, "u/")
}

// NormalizePostID accepts a bare id or a t3_ fullname and returns the bare id.
func NormalizePostID(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), types.KindLink+"_")
}

// ValidateSubredditName checks a subreddit name after normalization.
func ValidateSubredditName(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: "subreddit name cannot be empty"}
	}
	if !IsValidSubreddit(name) {
		return &pkgerrs.ConfigError{Field: "subreddit", Message: fmt.Sprintf("invalid subreddit name %q", name)}
	}
	return nil
}

// ValidateUsername checks a username after normalization.
func ValidateUsername(name string) error {
	if name == "" {
		return &pkgerrs.ConfigError{Field: "username", Message: "username cannot be empty"}
	}
	if !IsValidUsername(name) {
		return &pkgerrs.ConfigError{Field: "username", Message: fmt.Sprintf("invalid username %q", name)}
	}
	return nil
}

// ValidatePostID checks a bare post id.
func ValidatePostID(id string) error {
	if id == "" {
		return &pkgerrs.ConfigError{Field: "post_id", Message: "post ID cannot be empty"}
	}
	if !IsValidBase36(id) {
		return &pkgerrs.ConfigError{Field: "post_id", Message: fmt.Sprintf("post ID %q is not base36", id)}
	}
	return nil
}

// ValidateUserAgent validates the User-Agent string to prevent header injection.
func ValidateUserAgent(ua string) error {
	if len(ua) == 0 {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: "user agent cannot be empty"}
	}
	if strings.ContainsAny(ua, "\r\n") {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: "user agent cannot contain newline characters"}
	}
	if len(ua) > maxUserAgentLength {
		return &pkgerrs.ConfigError{Field: "user_agent", Message: fmt.Sprintf("user agent too long (max %d characters)", maxUserAgentLength)}
	}
	return nil
}

// ClampLimit maps a requested page size onto 1..MaxLimit. Zero or negative
// means DefaultLimit.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// PostsRequest normalizes and validates a subreddit listing request in place.
func PostsRequest(req *types.PostsRequest) error {
	req.Subreddit = NormalizeSubreddit(req.Subreddit)
	if err := ValidateSubredditName(req.Subreddit); err != nil {
		return err
	}
	if req.Sort == "" {
		req.Sort = types.SortHot
	}
	req.Sort = strings.ToLower(req.Sort)
	if !listingSorts[req.Sort] {
		return &pkgerrs.ConfigError{Field: "sort", Message: fmt.Sprintf("unsupported listing sort %q", req.Sort)}
	}
	req.Limit = ClampLimit(req.Limit)
	return nil
}

// SearchRequest normalizes and validates a search request in place.
func SearchRequest(req *types.SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return &pkgerrs.ConfigError{Field: "query", Message: "search query cannot be empty"}
	}
	if len(req.Query) > maxQueryLength {
		return &pkgerrs.ConfigError{Field: "query", Message: fmt.Sprintf("search query too long (max %d characters)", maxQueryLength)}
	}
	if req.Subreddit != "" {
		req.Subreddit = NormalizeSubreddit(req.Subreddit)
		if err := ValidateSubredditName(req.Subreddit); err != nil {
			return err
		}
	}
	if req.Sort == "" {
		req.Sort = "relevance"
	}
	if !searchSorts[req.Sort] {
		return &pkgerrs.ConfigError{Field: "sort", Message: fmt.Sprintf("unsupported search sort %q", req.Sort)}
	}
	if req.TimeFilter == "" {
		req.TimeFilter = "all"
	}
	if !timeFilters[req.TimeFilter] {
		return &pkgerrs.ConfigError{Field: "time_filter", Message: fmt.Sprintf("unsupported time filter %q", req.TimeFilter)}
	}
	req.Limit = ClampLimit(req.Limit)
	return nil
}

// UserListingRequest normalizes and validates a user listing request in place.
func UserListingRequest(req *types.UserListingRequest) error {
	req.Username = NormalizeUsername(req.Username)
	if err := ValidateUsername(req.Username); err != nil {
		return err
	}
	if req.Sort == "" {
		req.Sort = "new"
	}
	if !userSorts[req.Sort] {
		return &pkgerrs.ConfigError{Field: "sort", Message: fmt.Sprintf("unsupported user listing sort %q", req.Sort)}
	}
	req.Limit = ClampLimit(req.Limit)
	return nil
}
