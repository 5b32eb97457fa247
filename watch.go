package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// WatchSeenSize bounds how many post ids Watch remembers.
const WatchSeenSize = 1000

// WatchFunc receives each post Watch has not reported before.
type WatchFunc func(post types.Post)

// Watch polls a subreddit's newest posts every interval and calls fn for
// each post not seen earlier, oldest first. The first poll reports the whole
// page. Poll failures after the first are logged and retried on the next
// tick; authentication failures and cancellation end the watch.
func (c *Collector) Watch(ctx context.Context, req *types.PostsRequest, interval time.Duration, fn WatchFunc) error {
	if req == nil || fn == nil {
		return &pkgerrs.ConfigError{Field: "request", Message: "request and callback are required"}
	}
	if interval <= 0 {
		return &pkgerrs.ConfigError{Field: "interval", Message: "interval must be positive"}
	}
	r := *req
	r.Sort = types.SortNew

	seen, err := lru.New[string, struct{}](WatchSeenSize)
	if err != nil {
		return err
	}

	for polls := 0; ; polls++ {
		posts, err := c.SubredditPosts(ctx, &r)
		switch {
		case err != nil && (polls == 0 || fatal(ctx, err)):
			if polls == 0 {
				return fmt.Errorf("initial poll failed: %w", err)
			}
			return err
		case err != nil:
			c.logger.Warn("poll failed", slog.String("subreddit", r.Subreddit), slog.String("error", err.Error()))
		default:
			fresh := 0
			for i := len(posts) - 1; i >= 0; i-- {
				if seen.Contains(posts[i].ID) {
					continue
				}
				seen.Add(posts[i].ID, struct{}{})
				fresh++
				fn(posts[i])
			}
			if fresh > 0 {
				c.logger.Info("new posts", slog.String("subreddit", r.Subreddit), slog.Int("count", fresh))
			}
		}

		if err := c.rc.Sleep(ctx, interval); err != nil {
			return err
		}
	}
}
