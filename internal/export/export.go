// Package export writes collected records to disk for offline analysis.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrs "github.com/jamesprial/go-reddit-collector/pkg/errors"
	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// Format names an output format.
type Format string

const (
	JSON   Format = "json"
	JSONL  Format = "jsonl"
	CSV    Format = "csv"
	SQLite Format = "sqlite"
)

// Formats lists every supported format.
var Formats = []Format{JSON, JSONL, CSV, SQLite}

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", &pkgerrs.ConfigError{Field: "format", Message: fmt.Sprintf("unsupported export format %q", s)}
}

const maxQueryInName = 20

// Source describes what was collected. It only drives file naming and the
// JSON document header.
type Source struct {
	Query     string `json:"query,omitempty"`
	Subreddit string `json:"subreddit,omitempty"`
	User      string `json:"user,omitempty"`
}

// BaseName returns the default file name, without extension, for data from
// src collected at now. Characters other than letters, digits, '_' and '-'
// are dropped.
func BaseName(src Source, now time.Time) string {
	ts := now.Format("20060102_150405")
	var name string
	switch {
	case src.Query != "":
		q := []rune(src.Query)
		if len(q) > maxQueryInName {
			q = q[:maxQueryInName]
		}
		name = "search_" + string(q) + "_" + ts
	case src.Subreddit != "":
		name = "subreddit_" + src.Subreddit + "_" + ts
	case src.User != "":
		name = "user_" + src.User + "_" + ts
	default:
		name = "reddit_data_" + ts
	}
	return sanitize(name)
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Options configures an Exporter.
type Options struct {
	// Dir receives the files. Empty means the working directory.
	Dir    string
	Now    func() time.Time
	Logger *slog.Logger
}

// Exporter writes collections in any supported format.
type Exporter struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// New returns an Exporter.
func New(opts Options) *Exporter {
	e := &Exporter{dir: opts.Dir, now: opts.Now, logger: opts.Logger}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Write exports data and returns the paths written. name overrides the
// generated base name; any extension on it is replaced. CSV produces a
// posts file and, when there are comments, a comments file.
func (e *Exporter) Write(ctx context.Context, format Format, data *types.Collection, src Source, name string) ([]string, error) {
	if data == nil {
		data = &types.Collection{}
	}
	now := e.now()
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if base == "" {
		base = BaseName(src, now)
	}
	base = filepath.Join(e.dir, base)
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create export directory: %w", err)
		}
	}

	var (
		paths []string
		err   error
	)
	switch format {
	case JSON:
		paths, err = writeJSON(base+".json", data, src, now)
	case JSONL:
		paths, err = writeJSONL(base+".jsonl", data)
	case CSV:
		paths, err = writeCSV(base, data)
	case SQLite:
		paths, err = writeSQLite(ctx, base+".db", data, now)
	default:
		_, err = ParseFormat(string(format))
	}
	if err != nil {
		return nil, err
	}
	e.logger.Info("export written",
		slog.String("format", string(format)),
		slog.Any("paths", paths),
		slog.Int("posts", len(data.Posts)),
		slog.Int("comments", len(data.Comments)))
	return paths, nil
}

// createdDate renders a Unix timestamp as UTC wall time, empty for zero.
func createdDate(utc float64) string {
	if utc == 0 {
		return ""
	}
	return time.Unix(int64(utc), 0).UTC().Format(time.DateTime)
}
