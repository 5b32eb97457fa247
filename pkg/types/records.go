package types

// Canonical records. They are produced by the normalizer regardless of which
// backend fetched the data. JSON field names follow Reddit's own so an
// encoded record can be fed back through the normalizer unchanged.

// PostFlags groups the boolean state flags of a post.
type PostFlags struct {
	IsSelf   bool `json:"is_self"`
	Over18   bool `json:"over_18"`
	Spoiler  bool `json:"spoiler"`
	Locked   bool `json:"locked"`
	Archived bool `json:"archived"`
	Stickied bool `json:"stickied"`
}

// Post is the canonical submission record.
type Post struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	AuthorRemoved bool    `json:"author_removed,omitempty"`
	Subreddit     string  `json:"subreddit"`
	Score         int     `json:"score"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	NumComments   int     `json:"num_comments"`
	CreatedUTC    float64 `json:"created_utc"`
	SelfText      string  `json:"selftext"`
	URL           string  `json:"url"`
	Permalink     string  `json:"permalink"`
	PostFlags
	Distinguished string `json:"distinguished,omitempty"`
}

// Comment is the canonical comment record.
type Comment struct {
	ID               string  `json:"id"`
	Author           string  `json:"author"`
	AuthorRemoved    bool    `json:"author_removed,omitempty"`
	Body             string  `json:"body"`
	BodyRemoved      bool    `json:"body_removed,omitempty"`
	Score            int     `json:"score"`
	CreatedUTC       float64 `json:"created_utc"`
	ParentID         string  `json:"parent_id"`
	LinkID           string  `json:"link_id"`
	Subreddit        string  `json:"subreddit"`
	Permalink        string  `json:"permalink"`
	Depth            int     `json:"depth"`
	IsSubmitter      bool    `json:"is_submitter"`
	Controversiality int     `json:"controversiality"`
	Distinguished    string  `json:"distinguished,omitempty"`
	Stickied         bool    `json:"stickied"`
}

// User is the canonical account record.
type User struct {
	Name             string  `json:"name"`
	ID               string  `json:"id"`
	CreatedUTC       float64 `json:"created_utc"`
	CommentKarma     int     `json:"comment_karma"`
	LinkKarma        int     `json:"link_karma"`
	Verified         bool    `json:"verified"`
	HasVerifiedEmail bool    `json:"has_verified_email"`
}

// Subreddit is the canonical community metadata record.
type Subreddit struct {
	Name              string  `json:"display_name"`
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	PublicDescription string  `json:"public_description"`
	Subscribers       int64   `json:"subscribers"`
	ActiveUsers       int     `json:"active_user_count"`
	Over18            bool    `json:"over18"`
	SubredditType     string  `json:"subreddit_type"`
	CreatedUTC        float64 `json:"created_utc"`
	URL               string  `json:"url"`
}

// Thread is a post together with its flattened comment tree.
type Thread struct {
	Post     *Post
	Comments []Comment
	// MoreIDs lists comment ids Reddit truncated from the tree.
	MoreIDs []string
}

// Listing request parameters shared by both backends.

// Sort orders accepted by subreddit listings.
const (
	SortHot    = "hot"
	SortNew    = "new"
	SortTop    = "top"
	SortRising = "rising"
)

// PostsRequest describes a subreddit listing request.
type PostsRequest struct {
	Subreddit string
	// Sort is one of SortHot, SortNew, SortTop or SortRising. Empty means hot.
	Sort string
	// Limit is clamped to 1..100 by the backends. Zero means 25.
	Limit int
}

// SearchRequest describes a full-text search, global or scoped to one subreddit.
type SearchRequest struct {
	Query string
	// Subreddit restricts the search when set.
	Subreddit string
	// Sort is one of "relevance", "hot", "top", "new", "comments". Empty means relevance.
	Sort string
	// TimeFilter is one of "hour", "day", "week", "month", "year", "all". Empty means all.
	TimeFilter string
	Limit      int
}

// UserListingRequest describes a request for a user's submissions or comments.
type UserListingRequest struct {
	Username string
	// Sort is one of "new", "hot", "top", "controversial". Empty means new.
	Sort  string
	Limit int
}

// Collection bundles the records gathered by one batch operation. It is the
// unit the exporters write.
type Collection struct {
	Posts    []Post    `json:"posts"`
	Comments []Comment `json:"comments"`
}

// UserActivity summarizes a user's recent public activity.
type UserActivity struct {
	User     *User     `json:"user"`
	Posts    []Post    `json:"posts"`
	Comments []Comment `json:"comments"`

	TotalPostScore    int `json:"total_post_score"`
	TotalCommentScore int `json:"total_comment_score"`
	// Subreddits counts posts and comments per community.
	Subreddits map[string]int `json:"subreddits"`
}
