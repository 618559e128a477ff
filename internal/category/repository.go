package category

import (
	"context"
	"database/sql"
	"errors"
)

var ErrCategoryNotFound = errors.New("category not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns every category with its tweet count, ordered by name.
func (r *Repository) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.slug, COUNT(tc.tweet_id) AS tweet_count
		FROM categories c
		LEFT JOIN tweet_categories tc ON c.id = tc.category_id
		GROUP BY c.id
		ORDER BY c.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.TweetCount); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// Subtags returns every distinct subtag in use, sorted.
func (r *Repository) Subtags(ctx context.Context) ([]string, error) {
	return r.collectTags(ctx, `
		SELECT DISTINCT subcategories
		FROM tweet_categories
		WHERE subcategories IS NOT NULL AND subcategories != ''
	`)
}

// TagsForCategory returns the distinct subtags used within one category, sorted.
// An unknown slug yields an empty list.
func (r *Repository) TagsForCategory(ctx context.Context, slug string) ([]string, error) {
	return r.collectTags(ctx, `
		SELECT DISTINCT tc.subcategories
		FROM tweet_categories tc
		JOIN categories c ON tc.category_id = c.id
		WHERE c.slug = ? AND tc.subcategories IS NOT NULL AND tc.subcategories != ''
	`, slug)
}

func (r *Repository) collectTags(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []string
	for rows.Next() {
		var list string
		if err := rows.Scan(&list); err != nil {
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sortedTags(lists), nil
}

// EnsureDefaults inserts the curated categories, leaving existing ones untouched.
func (r *Repository) EnsureDefaults(ctx context.Context) error {
	for _, c := range Defaults {
		if _, err := r.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO categories (name, slug) VALUES (?, ?)
		`, c.Name, c.Slug); err != nil {
			return err
		}
	}
	return nil
}

// IDByName looks up a category by its display name.
func (r *Repository) IDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrCategoryNotFound
	}
	return id, err
}

// Ensure returns the ID of the category named name, creating it with a
// slugified slug if it does not exist. A name whose slug is already taken
// resolves to the category holding that slug.
func (r *Repository) Ensure(ctx context.Context, name string) (int64, error) {
	slug := Slugify(name)
	if _, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO categories (name, slug) VALUES (?, ?)
	`, name, slug); err != nil {
		return 0, err
	}

	id, err := r.IDByName(ctx, name)
	if !errors.Is(err, ErrCategoryNotFound) {
		return id, err
	}
	return r.idBySlug(ctx, slug)
}

func (r *Repository) idBySlug(ctx context.Context, slug string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE slug = ?`, slug).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrCategoryNotFound
	}
	return id, err
}
