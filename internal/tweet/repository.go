package tweet

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/xbookmarks/api/internal/category"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// timeFormat keeps created_at fixed-width so text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

var ErrTweetNotFound = errors.New("tweet not found")

type Repository struct {
	db *sql.DB
	sq sq.StatementBuilderType
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, sq: sq.StatementBuilder}
}

const tweetColumns = `t.id, t.tweet_url, t.author, t.author_name, t.full_text, t.note_tweet_text,
	t.bookmark_date, t.tweet_date, t.media_type, t.image_path, t.video_url, t.cognitive_value, t.created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTweet(s rowScanner) (Tweet, error) {
	var t Tweet
	var createdAt string
	err := s.Scan(&t.ID, &t.TweetURL, &t.Author, &t.AuthorName, &t.FullText, &t.NoteTweetText,
		&t.BookmarkDate, &t.TweetDate, &t.MediaType, &t.ImagePath, &t.VideoURL, &t.CognitiveValue, &createdAt)
	if err != nil {
		return t, err
	}
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

// List returns tweets matching opts, newest first, each with its categories and subtags.
func (r *Repository) List(ctx context.Context, opts ListOptions) ([]TweetWithCategories, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	selectQuery := r.sq.Select(tweetColumns).From("tweets t")

	// Category and subtag filters must hold on the same tweet_categories row.
	link := sq.And{}
	if opts.Category != "" {
		link = append(link, sq.Eq{"c.slug": opts.Category})
	}
	tags := sq.Or{}
	for _, tag := range opts.Subtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		tags = append(tags, sq.Expr(`tc.subcategories LIKE ? ESCAPE '\'`, "%"+escapeLike(tag)+"%"))
	}
	if len(tags) > 0 {
		link = append(link, tags)
	}
	if len(link) > 0 {
		exists, existsArgs, err := r.sq.Select("1").
			From("tweet_categories tc").
			Join("categories c ON tc.category_id = c.id").
			Where("tc.tweet_id = t.id").
			Where(link).
			ToSql()
		if err != nil {
			return nil, err
		}
		selectQuery = selectQuery.Where(sq.Expr("EXISTS ("+exists+")", existsArgs...))
	}

	if opts.Search != "" {
		term := "%" + escapeLike(opts.Search) + "%"
		selectQuery = selectQuery.Where(sq.Or{
			sq.Expr(`t.full_text LIKE ? ESCAPE '\'`, term),
			sq.Expr(`t.author LIKE ? ESCAPE '\'`, term),
			sq.Expr(`t.note_tweet_text LIKE ? ESCAPE '\'`, term),
		})
	}

	query, args, err := selectQuery.
		OrderBy("t.created_at DESC", "t.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tweets := []TweetWithCategories{}
	for rows.Next() {
		t, err := scanTweet(rows)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, TweetWithCategories{Tweet: t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachCategories(ctx, tweets); err != nil {
		return nil, err
	}
	return tweets, nil
}

// GetByID returns a single tweet with its categories and subtags.
func (r *Repository) GetByID(ctx context.Context, id int64) (*TweetWithCategories, error) {
	t, err := scanTweet(r.db.QueryRowContext(ctx, `SELECT `+tweetColumns+` FROM tweets t WHERE t.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrTweetNotFound
	}
	if err != nil {
		return nil, err
	}

	tweets := []TweetWithCategories{{Tweet: t}}
	if err := r.attachCategories(ctx, tweets); err != nil {
		return nil, err
	}
	return &tweets[0], nil
}

// attachCategories loads category links for all tweets in one query.
func (r *Repository) attachCategories(ctx context.Context, tweets []TweetWithCategories) error {
	if len(tweets) == 0 {
		return nil
	}

	ids := make([]int64, len(tweets))
	index := make(map[int64]int, len(tweets))
	for i := range tweets {
		ids[i] = tweets[i].ID
		index[tweets[i].ID] = i
		tweets[i].Categories = []CategoryRef{}
		tweets[i].Subtags = []string{}
	}

	query, args, err := r.sq.Select("tc.tweet_id", "c.id", "c.name", "c.slug", "COALESCE(tc.subcategories, '')").
		From("tweet_categories tc").
		Join("categories c ON tc.category_id = c.id").
		Where(sq.Eq{"tc.tweet_id": ids}).
		OrderBy("tc.tweet_id", "c.name").
		ToSql()
	if err != nil {
		return err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var tweetID int64
		var c CategoryRef
		var subtags string
		if err := rows.Scan(&tweetID, &c.ID, &c.Name, &c.Slug, &subtags); err != nil {
			return err
		}
		t := &tweets[index[tweetID]]
		t.Categories = append(t.Categories, c)
		t.Subtags = mergeTags(t.Subtags, category.ParseTags(subtags))
	}

	return rows.Err()
}

func mergeTags(dst, src []string) []string {
	for _, tag := range src {
		found := false
		for _, existing := range dst {
			if existing == tag {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, tag)
		}
	}
	return dst
}

// Delete removes a tweet; its category links cascade.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tweets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTweetNotFound
	}
	return nil
}

func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM tweets),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM tweets WHERE media_type = ?),
			(SELECT COUNT(*) FROM tweets WHERE media_type = ?)
	`, MediaImage, MediaVideo).Scan(&s.TotalTweets, &s.TotalCategories, &s.TweetsWithImages, &s.TweetsWithVideos)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repository) ExistsByURL(ctx context.Context, tweetURL string) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM tweets WHERE tweet_url = ?`, tweetURL).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Create inserts t and fills in its ID and CreatedAt.
func (r *Repository) Create(ctx context.Context, t *Tweet) error {
	id, err := insertTweet(ctx, r.db, t)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// CreateWithCategory inserts t and its link to categoryID in one transaction,
// so a failed link leaves no tweet behind.
func (r *Repository) CreateWithCategory(ctx context.Context, t *Tweet, categoryID int64, subtags string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id, err := insertTweet(ctx, tx, t)
	if err != nil {
		return err
	}
	if err := linkCategory(ctx, tx, id, categoryID, subtags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	t.ID = id
	return nil
}

func insertTweet(ctx context.Context, db execer, t *Tweet) (int64, error) {
	if t.MediaType == "" {
		t.MediaType = MediaNone
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO tweets (
			tweet_url, author, author_name, full_text, note_tweet_text,
			bookmark_date, tweet_date, media_type, image_path, video_url, cognitive_value, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.TweetURL, t.Author, t.AuthorName, t.FullText, t.NoteTweetText,
		t.BookmarkDate, t.TweetDate, t.MediaType, t.ImagePath, t.VideoURL, t.CognitiveValue,
		t.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LinkCategory attaches a tweet to a category with a comma-separated subtag list.
func (r *Repository) LinkCategory(ctx context.Context, tweetID, categoryID int64, subtags string) error {
	return linkCategory(ctx, r.db, tweetID, categoryID, subtags)
}

func linkCategory(ctx context.Context, db execer, tweetID, categoryID int64, subtags string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tweet_categories (tweet_id, category_id, subcategories) VALUES (?, ?, ?)
	`, tweetID, categoryID, subtags)
	return err
}

// ListMissingImages returns the IDs of tweets without an image path, ascending.
func (r *Repository) ListMissingImages(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM tweets WHERE image_path IS NULL OR image_path = '' ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) SetImagePath(ctx context.Context, id int64, path string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE tweets SET image_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTweetNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// parseTime accepts the RFC 3339 timestamps this package writes, and plain
// "YYYY-MM-DD HH:MM:SS" values from rows edited by hand.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}
