// Package collector gathers posts, comments and account metadata from Reddit
// for offline analysis.
//
// # Overview
//
// Two interchangeable backends fetch the data:
//
//   - BackendPublic reads the public JSON endpoints with rotating browser
//     identities and needs no credentials.
//   - BackendOfficial uses the OAuth API. ClientID and ClientSecret give
//     read-only access; adding Username and Password switches to user
//     authentication.
//
// Both backends send every request through one paced, retrying request
// stream and return the same canonical records from pkg/types.
//
// # Quick Start
//
//	c, err := collector.New(&collector.Config{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	posts, err := c.SubredditPosts(ctx, &types.PostsRequest{
//		Subreddit: "golang",
//		Sort:      types.SortHot,
//		Limit:     10,
//	})
//
// # Missing Data
//
// A resource that does not exist, is private, or keeps answering with
// something other than JSON yields a nil record and a nil error. Errors are
// reserved for invalid input (ConfigError), failed authentication
// (AuthError), cancellation, and exhausted retries (RequestFailedError):
//
//	var failed *errors.RequestFailedError
//	if errors.As(err, &failed) {
//		log.Printf("gave up after %d attempts", failed.Attempts)
//	}
//
// # Pacing
//
// Requests are spaced by a jittered delay and capped per sliding minute.
// Rate-limit responses are retried with exponential back-off, honouring
// Retry-After. EnableStealth slows everything down for long collections;
// batch operations such as PostsWithComments also pause between items.
//
// # Comments
//
// Comment trees are flattened depth-first. Deleted and removed comments are
// dropped unless Config.KeepRemovedComments is set. CommentSet offers simple
// queries over a flattened list.
//
// # Watching
//
// Watch polls a subreddit's newest posts and calls back once per new post,
// until the context ends.
package collector
