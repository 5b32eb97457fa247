package export

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

//go:embed schema.sql
var schema string

const (
	insertPost = `insert or replace into posts (
		id, title, author, author_removed, subreddit, score, upvote_ratio, num_comments,
		created_utc, selftext, url, permalink, is_self, over_18, spoiler, locked,
		archived, stickied, distinguished, collected_at
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	insertComment = `insert or replace into comments (
		id, post_id, parent_id, author, author_removed, body, body_removed, score,
		created_utc, subreddit, permalink, depth, is_submitter, controversiality,
		distinguished, stickied, collected_at
	) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// writeSQLite upserts the collection into the database at path, creating it
// when needed. Repeated exports into one file accumulate records.
func writeSQLite(ctx context.Context, path string, data *types.Collection, now time.Time) (_ []string, err error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	if _, err = db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	collected := now.Unix()
	for _, p := range data.Posts {
		_, err = tx.ExecContext(ctx, insertPost,
			p.ID, p.Title, p.Author, p.AuthorRemoved, p.Subreddit, p.Score, p.UpvoteRatio,
			p.NumComments, p.CreatedUTC, p.SelfText, p.URL, p.Permalink, p.IsSelf, p.Over18,
			p.Spoiler, p.Locked, p.Archived, p.Stickied, p.Distinguished, collected)
		if err != nil {
			return nil, fmt.Errorf("insert post %s: %w", p.ID, err)
		}
	}
	for _, c := range data.Comments {
		_, err = tx.ExecContext(ctx, insertComment,
			c.ID, strings.TrimPrefix(c.LinkID, types.KindLink+"_"), c.ParentID, c.Author,
			c.AuthorRemoved, c.Body, c.BodyRemoved, c.Score, c.CreatedUTC, c.Subreddit,
			c.Permalink, c.Depth, c.IsSubmitter, c.Controversiality, c.Distinguished,
			c.Stickied, collected)
		if err != nil {
			return nil, fmt.Errorf("insert comment %s: %w", c.ID, err)
		}
	}
	return []string{path}, nil
}
