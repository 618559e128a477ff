// Package importer loads distilled bookmark exports into the database.
package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/xbookmarks/api/internal/category"
	"github.com/xbookmarks/api/internal/tweet"
)

const progressEvery = 50

// Bookmark is one entry of the distilled export.
type Bookmark struct {
	TweetURL        string  `json:"tweet_url"`
	Author          string  `json:"author"`
	AuthorName      string  `json:"author_name"`
	FullText        string  `json:"full_text"`
	NoteTweetText   string  `json:"note_tweet_text"`
	BookmarkDate    string  `json:"bookmark_date"`
	TweetDate       string  `json:"tweet_date"`
	MediaType       string  `json:"media_type"`
	VideoURL        string  `json:"video_url"`
	PrimaryCategory string  `json:"primary_category"`
	Subtags         Subtags `json:"subtags"`
	CognitiveValue  string  `json:"cognitive_value"`
}

// Subtags accepts either a JSON array of strings or a single comma-separated string.
type Subtags []string

func (s *Subtags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}

	var joined *string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("subtags must be a string or a list of strings: %w", err)
	}
	if joined == nil {
		*s = nil
		return nil
	}
	*s = category.ParseTags(*joined)
	return nil
}

// Result summarizes an import run.
type Result struct {
	RunID    string
	Total    int
	Imported int
	Skipped  int
	Errors   int
}

// Run imports the bookmarks file at path.
func Run(ctx context.Context, db *sql.DB, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	return Import(ctx, db, f)
}

// Import reads a JSON array of bookmarks from r. Tweets whose URL is already
// stored are skipped; a failing bookmark is counted and does not stop the run.
func Import(ctx context.Context, db *sql.DB, r io.Reader) (*Result, error) {
	var bookmarks []Bookmark
	if err := json.NewDecoder(r).Decode(&bookmarks); err != nil {
		return nil, fmt.Errorf("decoding bookmarks: %w", err)
	}

	res := &Result{RunID: ulid.Make().String(), Total: len(bookmarks)}
	log := slog.With("run_id", res.RunID)

	categories := category.NewRepository(db)
	tweets := tweet.NewRepository(db)

	if err := categories.EnsureDefaults(ctx); err != nil {
		return nil, fmt.Errorf("ensuring default categories: %w", err)
	}

	log.Info("importing bookmarks", "total", len(bookmarks))

	for i, b := range bookmarks {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := importOne(ctx, tweets, categories, b)
		switch {
		case errors.Is(err, errDuplicate):
			res.Skipped++
			log.Debug("skipping already imported tweet", "index", i+1, "author", b.Author)
			continue
		case err != nil:
			res.Errors++
			log.Warn("failed to import bookmark", "index", i+1, "tweet_url", b.TweetURL, "error", err)
			continue
		}

		res.Imported++
		if res.Imported%progressEvery == 0 {
			log.Info("import progress", "imported", res.Imported, "skipped", res.Skipped, "errors", res.Errors)
		}
	}

	log.Info("import complete",
		"total", res.Total,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return res, nil
}

var errDuplicate = errors.New("tweet already imported")

func importOne(ctx context.Context, tweets *tweet.Repository, categories *category.Repository, b Bookmark) error {
	if strings.TrimSpace(b.TweetURL) == "" {
		return errors.New("missing tweet_url")
	}
	if strings.TrimSpace(b.Author) == "" {
		return errors.New("missing author")
	}

	exists, err := tweets.ExistsByURL(ctx, b.TweetURL)
	if err != nil {
		return err
	}
	if exists {
		return errDuplicate
	}

	t := &tweet.Tweet{
		TweetURL:       b.TweetURL,
		Author:         b.Author,
		AuthorName:     optional(b.AuthorName),
		FullText:       b.FullText,
		NoteTweetText:  optional(b.NoteTweetText),
		BookmarkDate:   optional(b.BookmarkDate),
		TweetDate:      optional(b.TweetDate),
		MediaType:      b.MediaType,
		VideoURL:       optional(b.VideoURL),
		CognitiveValue: optional(b.CognitiveValue),
	}
	if b.PrimaryCategory == "" {
		if err := tweets.Create(ctx, t); err != nil {
			return fmt.Errorf("creating tweet: %w", err)
		}
		return nil
	}

	categoryID, err := categories.Ensure(ctx, b.PrimaryCategory)
	if err != nil {
		return fmt.Errorf("resolving category %q: %w", b.PrimaryCategory, err)
	}
	if err := tweets.CreateWithCategory(ctx, t, categoryID, category.JoinTags(b.Subtags)); err != nil {
		return fmt.Errorf("creating tweet: %w", err)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
