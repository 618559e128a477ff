package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/xbookmarks/api/internal/database"
)

// TestDB creates an in-memory SQLite database with migrations applied.
// The database is automatically closed when the test completes.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("running migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db.DB
}

// TestCategory represents a test category
type TestCategory struct {
	ID   int64
	Name string
	Slug string
}

// CreateTestCategory creates a category directly in the database without using the category package
func CreateTestCategory(t *testing.T, db *sql.DB, name, slug string) *TestCategory {
	t.Helper()

	res, err := db.ExecContext(context.Background(), `
		INSERT INTO categories (name, slug) VALUES (?, ?)
	`, name, slug)
	if err != nil {
		t.Fatalf("creating test category: %v", err)
	}
	id, _ := res.LastInsertId()

	return &TestCategory{ID: id, Name: name, Slug: slug}
}

// TestTweet represents a test tweet
type TestTweet struct {
	ID        int64
	TweetURL  string
	Author    string
	FullText  string
	MediaType string
	CreatedAt time.Time
}

// TweetOption customizes a tweet created by CreateTestTweet.
type TweetOption func(*tweetRow)

type tweetRow struct {
	mediaType string
	noteText  *string
	imagePath *string
	createdAt time.Time
}

// WithMediaType sets the tweet's media_type.
func WithMediaType(mediaType string) TweetOption {
	return func(r *tweetRow) { r.mediaType = mediaType }
}

// WithNoteText sets the tweet's note_tweet_text.
func WithNoteText(text string) TweetOption {
	return func(r *tweetRow) { r.noteText = &text }
}

// WithImagePath sets the tweet's image_path.
func WithImagePath(path string) TweetOption {
	return func(r *tweetRow) { r.imagePath = &path }
}

// WithCreatedAt overrides the tweet's created_at.
func WithCreatedAt(at time.Time) TweetOption {
	return func(r *tweetRow) { r.createdAt = at }
}

// CreateTestTweet creates a tweet directly in the database without using the tweet package
func CreateTestTweet(t *testing.T, db *sql.DB, tweetURL, author, fullText string, opts ...TweetOption) *TestTweet {
	t.Helper()

	row := tweetRow{mediaType: "none", createdAt: time.Now().UTC()}
	for _, opt := range opts {
		opt(&row)
	}

	res, err := db.ExecContext(context.Background(), `
		INSERT INTO tweets (tweet_url, author, full_text, note_tweet_text, media_type, image_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tweetURL, author, fullText, row.noteText, row.mediaType, row.imagePath, row.createdAt.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"))
	if err != nil {
		t.Fatalf("creating test tweet: %v", err)
	}
	id, _ := res.LastInsertId()

	return &TestTweet{
		ID:        id,
		TweetURL:  tweetURL,
		Author:    author,
		FullText:  fullText,
		MediaType: row.mediaType,
		CreatedAt: row.createdAt,
	}
}

// LinkTestCategory attaches a tweet to a category with a comma-separated subtag list.
func LinkTestCategory(t *testing.T, db *sql.DB, tweetID, categoryID int64, subtags string) {
	t.Helper()

	_, err := db.ExecContext(context.Background(), `
		INSERT INTO tweet_categories (tweet_id, category_id, subcategories) VALUES (?, ?, ?)
	`, tweetID, categoryID, subtags)
	if err != nil {
		t.Fatalf("linking test category: %v", err)
	}
}
