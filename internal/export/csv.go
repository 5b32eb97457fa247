package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

var (
	postColumns = []string{
		"id", "title", "author", "subreddit", "score", "upvote_ratio", "num_comments",
		"created_utc", "created_date", "selftext", "url", "permalink", "is_self",
		"over_18", "spoiler", "locked", "archived", "stickied", "distinguished",
		"text_length", "title_length",
	}
	commentColumns = []string{
		"id", "author", "body", "score", "created_utc", "created_date", "parent_id",
		"post_id", "subreddit", "depth", "is_submitter", "controversiality",
		"distinguished", "stickied", "comment_length",
	}
)

func postRow(p types.Post) []string {
	return []string{
		p.ID, p.Title, p.Author, p.Subreddit,
		strconv.Itoa(p.Score),
		strconv.FormatFloat(p.UpvoteRatio, 'f', -1, 64),
		strconv.Itoa(p.NumComments),
		strconv.FormatFloat(p.CreatedUTC, 'f', -1, 64),
		createdDate(p.CreatedUTC),
		p.SelfText, p.URL, p.Permalink,
		strconv.FormatBool(p.IsSelf),
		strconv.FormatBool(p.Over18),
		strconv.FormatBool(p.Spoiler),
		strconv.FormatBool(p.Locked),
		strconv.FormatBool(p.Archived),
		strconv.FormatBool(p.Stickied),
		p.Distinguished,
		strconv.Itoa(len([]rune(p.SelfText))),
		strconv.Itoa(len([]rune(p.Title))),
	}
}

func commentRow(c types.Comment) []string {
	return []string{
		c.ID, c.Author, c.Body,
		strconv.Itoa(c.Score),
		strconv.FormatFloat(c.CreatedUTC, 'f', -1, 64),
		createdDate(c.CreatedUTC),
		c.ParentID,
		strings.TrimPrefix(c.LinkID, types.KindLink+"_"),
		c.Subreddit,
		strconv.Itoa(c.Depth),
		strconv.FormatBool(c.IsSubmitter),
		strconv.Itoa(c.Controversiality),
		c.Distinguished,
		strconv.FormatBool(c.Stickied),
		strconv.Itoa(len([]rune(c.Body))),
	}
}

func writeCSV(base string, data *types.Collection) ([]string, error) {
	postsPath := base + "_posts.csv"
	if err := writeTable(postsPath, postColumns, len(data.Posts), func(i int) []string { return postRow(data.Posts[i]) }); err != nil {
		return nil, err
	}
	paths := []string{postsPath}
	if len(data.Comments) == 0 {
		return paths, nil
	}
	commentsPath := base + "_comments.csv"
	if err := writeTable(commentsPath, commentColumns, len(data.Comments), func(i int) []string { return commentRow(data.Comments[i]) }); err != nil {
		return nil, err
	}
	return append(paths, commentsPath), nil
}

func writeTable(path string, header []string, n int, row func(int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for i := range n {
		if err := w.Write(row(i)); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
