// Command redditcollect collects Reddit posts, comments and user activity and
// exports them for offline analysis.
//
// Usage:
//
//	redditcollect subreddit golang --sort top --limit 50 --comments --format csv
//	redditcollect search "generics" --subreddit golang --format jsonl
//	redditcollect user spez --format table
//	redditcollect post 1abcde --comment-limit 200
//	redditcollect watch golang --interval 1m
//	redditcollect status
//
// Credentials for --backend official come from redditcollect.yaml or the
// REDDIT_CLIENT_ID, REDDIT_CLIENT_SECRET, REDDIT_USERNAME, REDDIT_PASSWORD
// and REDDIT_USER_AGENT environment variables.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
