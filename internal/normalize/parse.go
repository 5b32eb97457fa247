package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// Things flattens any Reddit payload shape into a list of things:
//   - a Listing yields its children
//   - a single thing yields itself
//   - an array yields the things of each element in order
//   - a plain object yields one thing with an empty Kind whose Data is the
//     object itself
func Things(raw json.RawMessage) ([]*types.Thing, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	switch raw[0] {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("failed to parse array payload: %w", err)
		}
		var out []*types.Thing
		for _, e := range elems {
			things, err := Things(e)
			if err != nil {
				return nil, err
			}
			out = append(out, things...)
		}
		return out, nil
	case '{':
	default:
		return nil, fmt.Errorf("unexpected payload starting with %q", raw[0])
	}

	var thing types.Thing
	if err := json.Unmarshal(raw, &thing); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	if thing.Kind == "" || len(thing.Data) == 0 {
		return []*types.Thing{{Data: raw}}, nil
	}
	if thing.Kind == types.KindListing {
		listing, err := ParseListing(&thing)
		if err != nil {
			return nil, err
		}
		return listing.Children, nil
	}
	return []*types.Thing{&thing}, nil
}

// ParseListing extracts a ListingData from a Thing of kind "Listing".
func ParseListing(thing *types.Thing) (*types.ListingData, error) {
	if thing == nil {
		return nil, fmt.Errorf("thing is nil")
	}
	if thing.Kind != types.KindListing {
		return nil, fmt.Errorf("expected Listing, got %s", thing.Kind)
	}

	var listing types.ListingData
	if err := json.Unmarshal(thing.Data, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse Listing data: %w", err)
	}
	return &listing, nil
}

// ParseLink decodes a t3 thing. A thing with an empty Kind is accepted as a
// plain object.
func ParseLink(thing *types.Thing) (*types.LinkData, error) {
	if err := expectKind(thing, types.KindLink); err != nil {
		return nil, err
	}
	var link types.LinkData
	if err := json.Unmarshal(thing.Data, &link); err != nil {
		return nil, fmt.Errorf("failed to parse Link data: %w", err)
	}
	return &link, nil
}

// MaxCommentDepth bounds how many reply levels are decoded below a comment.
// Deeper replies are dropped.
const MaxCommentDepth = 100

// ParseComment decodes a t1 thing together with its reply tree. Reddit sends
// replies as a Listing, or as "" when there are none.
func ParseComment(thing *types.Thing) (*types.CommentData, error) {
	return parseComment(thing, 0)
}

func parseComment(thing *types.Thing, level int) (*types.CommentData, error) {
	if err := expectKind(thing, types.KindComment); err != nil {
		return nil, err
	}
	var comment types.CommentData
	if err := json.Unmarshal(thing.Data, &comment); err != nil {
		return nil, fmt.Errorf("failed to parse Comment data: %w", err)
	}

	if level >= MaxCommentDepth {
		return &comment, nil
	}
	var rawData struct {
		Replies json.RawMessage `json:"replies"`
	}
	if err := json.Unmarshal(thing.Data, &rawData); err == nil && len(rawData.Replies) > 0 && rawData.Replies[0] == '{' {
		var repliesThing types.Thing
		if err := json.Unmarshal(rawData.Replies, &repliesThing); err == nil && repliesThing.Kind == types.KindListing {
			if data, err := ParseListing(&repliesThing); err == nil {
				comment.Replies, comment.More = extractCommentChildren(data.Children, level+1)
			}
		}
	}
	return &comment, nil
}

// ParseAccount decodes a t2 thing.
func ParseAccount(thing *types.Thing) (*types.AccountData, error) {
	if err := expectKind(thing, types.KindAccount); err != nil {
		return nil, err
	}
	var account types.AccountData
	if err := json.Unmarshal(thing.Data, &account); err != nil {
		return nil, fmt.Errorf("failed to parse Account data: %w", err)
	}
	return &account, nil
}

// ParseSubreddit decodes a t5 thing.
func ParseSubreddit(thing *types.Thing) (*types.SubredditData, error) {
	if err := expectKind(thing, types.KindSubreddit); err != nil {
		return nil, err
	}
	var sub types.SubredditData
	if err := json.Unmarshal(thing.Data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse Subreddit data: %w", err)
	}
	return &sub, nil
}

// ParseMore decodes a "more" placeholder.
func ParseMore(thing *types.Thing) (*types.MoreData, error) {
	if err := expectKind(thing, types.KindMore); err != nil {
		return nil, err
	}
	var more types.MoreData
	if err := json.Unmarshal(thing.Data, &more); err != nil {
		return nil, fmt.Errorf("failed to parse More data: %w", err)
	}
	return &more, nil
}

// ExtractLinks decodes every t3 child of a payload, skipping children that
// fail to decode.
func ExtractLinks(things []*types.Thing) []*types.LinkData {
	links := make([]*types.LinkData, 0, len(things))
	for _, child := range things {
		if child == nil || (child.Kind != types.KindLink && child.Kind != "") {
			continue
		}
		link, err := ParseLink(child)
		if err != nil {
			continue
		}
		links = append(links, link)
	}
	return links
}

// ExtractComments decodes the t1 children of a Listing thing and collects
// the ids of "more" placeholders.
func ExtractComments(listing *types.Thing) ([]*types.CommentData, []string) {
	data, err := ParseListing(listing)
	if err != nil {
		return nil, nil
	}
	return extractCommentChildren(data.Children, 0)
}

func extractCommentChildren(children []*types.Thing, level int) ([]*types.CommentData, []string) {
	var (
		comments []*types.CommentData
		moreIDs  []string
	)
	for _, child := range children {
		if child == nil {
			continue
		}
		switch {
		case child.Kind == types.KindComment:
			c, err := parseComment(child, level)
			if err != nil {
				continue
			}
			comments = append(comments, c)
		case child.Kind == types.KindMore:
			more, err := ParseMore(child)
			if err != nil {
				continue
			}
			moreIDs = append(moreIDs, more.Children...)
		}
	}
	return comments, moreIDs
}

func expectKind(thing *types.Thing, kind string) error {
	if thing == nil {
		return fmt.Errorf("thing is nil")
	}
	if thing.Kind != kind && thing.Kind != "" {
		return fmt.Errorf("expected %s, got %s", kind, thing.Kind)
	}
	return nil
}
