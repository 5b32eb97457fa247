package collector

import "github.com/jamesprial/go-reddit-collector/pkg/types"

// CommentSet provides queries over a flattened comment list such as
// Thread.Comments. Order is preserved by every method.
type CommentSet []types.Comment

// Filter returns the comments matching fn.
func (cs CommentSet) Filter(fn func(types.Comment) bool) CommentSet {
	var out CommentSet
	for _, c := range cs {
		if fn(c) {
			out = append(out, c)
		}
	}
	return out
}

// Find returns the first comment matching fn.
func (cs CommentSet) Find(fn func(types.Comment) bool) (types.Comment, bool) {
	for _, c := range cs {
		if fn(c) {
			return c, true
		}
	}
	return types.Comment{}, false
}

// ByID returns the comment with the given id.
func (cs CommentSet) ByID(id string) (types.Comment, bool) {
	return cs.Find(func(c types.Comment) bool { return c.ID == id })
}

// ByAuthor returns every comment written by author.
func (cs CommentSet) ByAuthor(author string) CommentSet {
	return cs.Filter(func(c types.Comment) bool { return !c.AuthorRemoved && c.Author == author })
}

// TopLevel returns the direct replies to the post.
func (cs CommentSet) TopLevel() CommentSet {
	return cs.Filter(func(c types.Comment) bool { return c.Depth == 0 })
}

// Replies returns the direct replies to the comment with the given id.
func (cs CommentSet) Replies(id string) CommentSet {
	parent := types.KindComment + "_" + id
	return cs.Filter(func(c types.Comment) bool { return c.ParentID == parent })
}

// MaxDepth returns the deepest nesting level, or -1 for an empty set.
func (cs CommentSet) MaxDepth() int {
	depth := -1
	for _, c := range cs {
		depth = max(depth, c.Depth)
	}
	return depth
}
