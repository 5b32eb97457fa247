package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesprial/go-reddit-collector/internal/config"
	"github.com/jamesprial/go-reddit-collector/internal/export"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

func (a *app) progress(done, total int, post types.Post) {
	a.logger.Info("post processed",
		slog.Int("done", done),
		slog.Int("total", total),
		slog.String("post_id", post.ID),
		slog.Int("num_comments", post.NumComments))
}

func (a *app) subredditCmd() *cobra.Command {
	var (
		req          types.PostsRequest
		withComments bool
		commentLimit int
	)
	cmd := &cobra.Command{
		Use:   "subreddit <name>",
		Short: "Collect posts from a subreddit, optionally with their comments.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Subreddit = args[0]
			var (
				data *types.Collection
				err  error
			)
			if withComments {
				data, err = a.collector.PostsWithComments(cmd.Context(), &req, commentLimit, a.progress)
			} else {
				var posts []types.Post
				posts, err = a.collector.SubredditPosts(cmd.Context(), &req)
				data = &types.Collection{Posts: posts}
			}
			if err != nil && data == nil {
				return err
			}
			if emitErr := a.emit(cmd, data, export.Source{Subreddit: req.Subreddit}); emitErr != nil {
				return emitErr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Sort, "sort", types.SortHot, "hot, new, top or rising")
	f.IntVar(&req.Limit, "limit", 25, "number of posts (max 100)")
	f.BoolVar(&withComments, "comments", false, "also fetch comments for every post that has any")
	f.IntVar(&commentLimit, "comment-limit", 100, "comments requested per post")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		req          types.SearchRequest
		withComments bool
		commentLimit int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search posts globally or within one subreddit.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			data, err := a.collector.SearchAndExtract(cmd.Context(), &req, withComments, commentLimit, a.progress)
			if err != nil && data == nil {
				return err
			}
			if emitErr := a.emit(cmd, data, export.Source{Query: req.Query}); emitErr != nil {
				return emitErr
			}
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Subreddit, "subreddit", "", "restrict the search to one subreddit")
	f.StringVar(&req.Sort, "sort", "relevance", "relevance, hot, top, new or comments")
	f.StringVar(&req.TimeFilter, "time", "all", "hour, day, week, month, year or all")
	f.IntVar(&req.Limit, "limit", 25, "number of results (max 100)")
	f.BoolVar(&withComments, "comments", false, "also fetch comments for every result")
	f.IntVar(&commentLimit, "comment-limit", 100, "comments requested per post")
	return cmd
}

func (a *app) userCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "user <name>",
		Short: "Collect a user's profile, recent posts and comments.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			activity, err := a.collector.UserActivity(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if activity == nil {
				return fmt.Errorf("user %q not found", args[0])
			}
			if a.cfg.Export.Format == config.FormatTable {
				renderActivity(a.out, activity)
			}
			return a.emit(cmd, &types.Collection{Posts: activity.Posts, Comments: activity.Comments},
				export.Source{User: activity.User.Name})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 25, "posts and comments to fetch (max 100 each)")
	return cmd
}

func (a *app) postCmd() *cobra.Command {
	var commentLimit int
	cmd := &cobra.Command{
		Use:   "post <id>",
		Short: "Collect one post with its comment tree.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			thread, err := a.collector.Thread(cmd.Context(), args[0], commentLimit)
			if err != nil {
				return err
			}
			if thread == nil || thread.Post == nil {
				return fmt.Errorf("post %q not found", args[0])
			}
			if len(thread.MoreIDs) > 0 {
				a.logger.Info("comment tree truncated", slog.Int("more", len(thread.MoreIDs)))
			}
			if a.cfg.Export.Format == config.FormatTable {
				renderThread(a.out, thread)
				return nil
			}
			return a.emit(cmd, &types.Collection{Posts: []types.Post{*thread.Post}, Comments: thread.Comments},
				export.Source{Subreddit: thread.Post.Subreddit})
		},
	}
	cmd.Flags().IntVar(&commentLimit, "comment-limit", 0, "comments requested, 0 lets Reddit decide")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	var (
		req      types.PostsRequest
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <subreddit>",
		Short: "Poll a subreddit and print new posts as they appear.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Subreddit = args[0]
			err := a.collector.Watch(cmd.Context(), &req, interval, func(p types.Post) {
				printPost(a.out, p)
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "time between polls")
	cmd.Flags().IntVar(&req.Limit, "limit", 10, "posts fetched per poll")
	return cmd
}

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the effective pacing and retry settings.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			renderStatus(a.out, a.collector.Status())
			return nil
		},
	}
}

// emit prints or exports a collection according to --format.
func (a *app) emit(cmd *cobra.Command, data *types.Collection, src export.Source) error {
	if a.cfg.Export.Format == config.FormatTable {
		renderPosts(a.out, data)
		return nil
	}
	format, err := export.ParseFormat(a.cfg.Export.Format)
	if err != nil {
		return err
	}
	e := export.New(export.Options{Dir: a.cfg.Export.Dir, Logger: a.logger})
	paths, err := e.Write(cmd.Context(), format, data, src, a.name)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(a.out, p)
	}
	return nil
}
