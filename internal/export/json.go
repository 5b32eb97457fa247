package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jamesprial/go-reddit-collector/pkg/types"
)

// Document is the JSON export layout.
type Document struct {
	Source
	ExportedAt time.Time       `json:"exported_at"`
	Posts      []types.Post    `json:"posts"`
	Comments   []types.Comment `json:"comments"`
}

func writeJSON(path string, data *types.Collection, src Source, now time.Time) ([]string, error) {
	doc := Document{
		Source:     src,
		ExportedAt: now.UTC(),
		Posts:      nonNil(data.Posts),
		Comments:   nonNil(data.Comments),
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		f.Close()
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

// line is one JSON-lines record. It uses Reddit's kind/data envelope so a
// line can be fed back through the normalizer.
type line struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}

func writeJSONL(path string, data *types.Collection) ([]string, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	err = func() error {
		for _, p := range data.Posts {
			if err := enc.Encode(line{Kind: types.KindLink, Data: p}); err != nil {
				return err
			}
		}
		for _, c := range data.Comments {
			if err := enc.Encode(line{Kind: types.KindComment, Data: c}); err != nil {
				return err
			}
		}
		return w.Flush()
	}()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
