package linkpreview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store is the preview cache consumed by the Resolver.
type Store interface {
	// Get returns the fresh preview for url, or nil if there is none.
	Get(ctx context.Context, url string) (*Preview, error)
	// Put upserts p and stamps its CachedAt with the current time.
	Put(ctx context.Context, p *Preview) error
}

// Repository is the SQLite-backed Store.
type Repository struct {
	db        *sql.DB
	freshness time.Duration
	clock     Clock
}

// NewRepository creates a Repository. A non-positive freshness uses DefaultFreshness.
func NewRepository(db *sql.DB, freshness time.Duration) *Repository {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	return &Repository{db: db, freshness: freshness, clock: realClock{}}
}

// SetClock replaces the time source.
func (r *Repository) SetClock(c Clock) {
	r.clock = c
}

// Get returns the cached preview for url, or nil if not found / stale.
// Stale rows are left in place and overwritten by the next Put.
func (r *Repository) Get(ctx context.Context, url string) (*Preview, error) {
	var p Preview
	var title, description, image, siteName sql.NullString
	var cachedAt string

	err := r.db.QueryRowContext(ctx, `
		SELECT url, title, description, image, site_name, cached_at
		FROM link_previews WHERE url = ?
	`, url).Scan(&p.URL, &title, &description, &image, &siteName, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying link preview: %w", err)
	}

	p.CachedAt, err = time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		// Unreadable timestamps count as stale.
		return nil, nil
	}
	if r.clock.Now().Sub(p.CachedAt) >= r.freshness {
		return nil, nil
	}

	p.Title = stringPtr(title)
	p.Description = stringPtr(description)
	p.Image = stringPtr(image)
	p.SiteName = stringPtr(siteName)

	return &p, nil
}

// Put inserts or replaces the row for p.URL.
func (r *Repository) Put(ctx context.Context, p *Preview) error {
	p.CachedAt = r.clock.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO link_previews (url, title, description, image, site_name, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.URL, nullString(p.Title), nullString(p.Description), nullString(p.Image), nullString(p.SiteName),
		p.CachedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storing link preview: %w", err)
	}
	return nil
}

// nullString returns sql.NullString for optional text fields.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
