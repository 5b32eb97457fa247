package types

import (
	"encoding/json"
	"fmt"
)

// Kinds tag every object in a Reddit payload.
const (
	KindListing   = "Listing"
	KindComment   = "t1"
	KindAccount   = "t2"
	KindLink      = "t3"
	KindSubreddit = "t5"
	KindMore      = "more"
)

// ThingData holds the identifiers every Reddit object carries: the bare
// base36 ID and the prefixed fullname, e.g. "abc123" and "t3_abc123".
type ThingData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Thing is the envelope Reddit wraps around every object. Data is kept raw
// until the kind is known.
type Thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Created carries the creation time in epoch seconds.
type Created struct {
	CreatedUTC float64 `json:"created_utc"`
}

// Edited decodes Reddit's "edited" field, which is false, true for items
// edited before timestamps were recorded, or the edit time in epoch seconds.
type Edited struct {
	Edited bool
	// At is the edit time, zero when unknown.
	At float64
}

func (e *Edited) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch v := v.(type) {
	case nil:
		*e = Edited{}
	case bool:
		*e = Edited{Edited: v}
	case float64:
		*e = Edited{Edited: true, At: v}
	default:
		return fmt.Errorf("unexpected edited value %s", data)
	}
	return nil
}

// ListingData is the payload of a Listing. Children stay raw until the
// caller knows what kind it expects.
type ListingData struct {
	After    string   `json:"after"`
	Children []*Thing `json:"children"`
}

// LinkData is the wire form of a submission (kind t3).
type LinkData struct {
	ThingData
	Created
	Author        string  `json:"author"`
	Archived      bool    `json:"archived"`
	Distinguished *string `json:"distinguished"`
	Edited        Edited  `json:"edited"`
	IsSelf        bool    `json:"is_self"`
	Locked        bool    `json:"locked"`
	NumComments   int     `json:"num_comments"`
	Over18        bool    `json:"over_18"`
	Permalink     string  `json:"permalink"`
	Score         int     `json:"score"`
	SelfText      string  `json:"selftext"`
	Spoiler       bool    `json:"spoiler"`
	Stickied      bool    `json:"stickied"`
	Subreddit     string  `json:"subreddit"`
	Title         string  `json:"title"`
	UpvoteRatio   float64 `json:"upvote_ratio"`
	URL           string  `json:"url"`
}

// CommentData is the wire form of a comment (kind t1). Replies are decoded
// separately because Reddit sends either a Listing or "".
type CommentData struct {
	ThingData
	Created
	Author           string         `json:"author"`
	Body             *string        `json:"body"`
	Controversiality int            `json:"controversiality"`
	Depth            *int           `json:"depth"`
	Distinguished    *string        `json:"distinguished"`
	Edited           Edited         `json:"edited"`
	IsSubmitter      bool           `json:"is_submitter"`
	LinkID           string         `json:"link_id"`
	ParentID         string         `json:"parent_id"`
	Permalink        string         `json:"permalink"`
	Score            int            `json:"score"`
	Stickied         bool           `json:"stickied"`
	Subreddit        string         `json:"subreddit"`
	Replies          []*CommentData `json:"-"`
	More             []string       `json:"-"`
}

// AccountData is the wire form of an account (kind t2).
type AccountData struct {
	ThingData
	Created
	CommentKarma     int   `json:"comment_karma"`
	HasVerifiedEmail *bool `json:"has_verified_email"`
	LinkKarma        int   `json:"link_karma"`
	Verified         *bool `json:"verified"`
}

// SubredditData is the wire form of a community (kind t5).
type SubredditData struct {
	ThingData
	Created
	AccountsActive    int    `json:"accounts_active"`
	ActiveUserCount   int    `json:"active_user_count"`
	DisplayName       string `json:"display_name"`
	Over18            bool   `json:"over18"`
	PublicDescription string `json:"public_description"`
	Subscribers       int64  `json:"subscribers"`
	SubredditType     string `json:"subreddit_type"`
	Title             string `json:"title"`
	URL               string `json:"url"`
}

// MoreData is a placeholder for comments Reddit left out of a tree.
type MoreData struct {
	ThingData
	Count    int      `json:"count"`
	Children []string `json:"children"`
}
