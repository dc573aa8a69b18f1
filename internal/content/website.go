// internal/content/website.go
//
// Read-only query helpers for the `websites` and `website_pages` tables.
//
// Context
// -------
// All helpers take a preview flag.  Preview requests may see unpublished
// pages; everything else is restricted to published rows at SQL level so
// callers stay simple.
//
// Homepage candidate queries return up to two rows so the resolver can
// detect the multiple-homepage data-integrity condition without pulling the
// whole page set.
package content

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is shared by every lookup in this package.
var ErrNotFound = errors.New("content not found")

// ActiveWebsiteByStore returns the store's current published, active
// website.  A store has at most one at a time; ties break on newest id.
func ActiveWebsiteByStore(ctx context.Context, db *sqlx.DB, storeID uint64) (*Website, error) {
	const q = `
        SELECT id, store_id, status, is_active
        FROM   websites
        WHERE  store_id = ?
          AND  status    = 'published'
          AND  is_active = 1
        ORDER  BY id DESC
        LIMIT  1`
	var w Website
	if err := db.GetContext(ctx, &w, q, storeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// HomepageCandidates returns up to two homepage-flagged pages for a website,
// lowest id first.  Zero rows means no homepage; two rows signals the
// data-integrity condition the resolver logs.
func HomepageCandidates(ctx context.Context, db *sqlx.DB, websiteID uint64, preview bool) ([]Page, error) {
	q := `
        SELECT id, website_id, slug, is_homepage, is_published, updated_at
        FROM   website_pages
        WHERE  website_id = ?
          AND  is_homepage = 1`
	if !preview {
		q += `
          AND  is_published = 1`
	}
	q += `
        ORDER  BY id ASC
        LIMIT  2`
	var rows []Page
	if err := db.SelectContext(ctx, &rows, q, websiteID); err != nil {
		return nil, err
	}
	return rows, nil
}

// PageBySlug returns the page with the given slug inside a website.
func PageBySlug(ctx context.Context, db *sqlx.DB, websiteID uint64, slug string, preview bool) (*Page, error) {
	q := `
        SELECT id, website_id, slug, is_homepage, is_published, updated_at
        FROM   website_pages
        WHERE  website_id = ?
          AND  slug = ?`
	if !preview {
		q += `
          AND  is_published = 1`
	}
	q += `
        LIMIT  1`
	var p Page
	if err := db.GetContext(ctx, &p, q, websiteID, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}
