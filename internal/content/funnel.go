// internal/content/funnel.go
//
// Read-only query helpers for the `funnels` and `funnel_steps` tables.
//
// The funnel lookups mirror the website ones but join through the funnel so
// a store-wide slug search stays a single statement.  Funnel order on ties
// is newest funnel first, matching how the dashboard lists them.
package content

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// FunnelByID returns a published, active funnel by id.  Used when a domain
// connection names a funnel explicitly.
func FunnelByID(ctx context.Context, db *sqlx.DB, id uint64) (*Funnel, error) {
	const q = `
        SELECT id, store_id, status, is_active
        FROM   funnels
        WHERE  id = ?
          AND  status    = 'published'
          AND  is_active = 1
        LIMIT  1`
	var f Funnel
	if err := db.GetContext(ctx, &f, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

// WebsiteByID is the website counterpart of FunnelByID.
func WebsiteByID(ctx context.Context, db *sqlx.DB, id uint64) (*Website, error) {
	const q = `
        SELECT id, store_id, status, is_active
        FROM   websites
        WHERE  id = ?
          AND  status    = 'published'
          AND  is_active = 1
        LIMIT  1`
	var w Website
	if err := db.GetContext(ctx, &w, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// StepHomepageCandidates returns up to two homepage-flagged steps inside a
// funnel, lowest id first.
func StepHomepageCandidates(ctx context.Context, db *sqlx.DB, funnelID uint64, preview bool) ([]Step, error) {
	q := `
        SELECT id, funnel_id, slug, is_homepage, is_published, updated_at
        FROM   funnel_steps
        WHERE  funnel_id = ?
          AND  is_homepage = 1`
	if !preview {
		q += `
          AND  is_published = 1`
	}
	q += `
        ORDER  BY id ASC
        LIMIT  2`
	var rows []Step
	if err := db.SelectContext(ctx, &rows, q, funnelID); err != nil {
		return nil, err
	}
	return rows, nil
}

// StepBySlug returns the step with the given slug inside a funnel.
func StepBySlug(ctx context.Context, db *sqlx.DB, funnelID uint64, slug string, preview bool) (*Step, error) {
	q := `
        SELECT id, funnel_id, slug, is_homepage, is_published, updated_at
        FROM   funnel_steps
        WHERE  funnel_id = ?
          AND  slug = ?`
	if !preview {
		q += `
          AND  is_published = 1`
	}
	q += `
        LIMIT  1`
	var s Step
	if err := db.GetContext(ctx, &s, q, funnelID, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// StoreStepBySlug searches every published, active funnel of a store for a
// step slug.  Newest funnel wins on ties.
func StoreStepBySlug(ctx context.Context, db *sqlx.DB, storeID uint64, slug string, preview bool) (*Step, error) {
	q := `
        SELECT s.id, s.funnel_id, s.slug, s.is_homepage, s.is_published, s.updated_at
        FROM   funnel_steps s
        JOIN   funnels f ON f.id = s.funnel_id
        WHERE  f.store_id  = ?
          AND  f.status    = 'published'
          AND  f.is_active = 1
          AND  s.slug = ?`
	if !preview {
		q += `
          AND  s.is_published = 1`
	}
	q += `
        ORDER  BY f.id DESC, s.id ASC
        LIMIT  1`
	var s Step
	if err := db.GetContext(ctx, &s, q, storeID, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// StoreHomepageStepCandidates returns up to two homepage-flagged steps
// across a store's published, active funnels, for root-path funnel
// resolution when the store has no website.
func StoreHomepageStepCandidates(ctx context.Context, db *sqlx.DB, storeID uint64, preview bool) ([]Step, error) {
	q := `
        SELECT s.id, s.funnel_id, s.slug, s.is_homepage, s.is_published, s.updated_at
        FROM   funnel_steps s
        JOIN   funnels f ON f.id = s.funnel_id
        WHERE  f.store_id  = ?
          AND  f.status    = 'published'
          AND  f.is_active = 1
          AND  s.is_homepage = 1`
	if !preview {
		q += `
          AND  s.is_published = 1`
	}
	q += `
        ORDER  BY f.id DESC, s.id ASC
        LIMIT  2`
	var rows []Step
	if err := db.SelectContext(ctx, &rows, q, storeID); err != nil {
		return nil, err
	}
	return rows, nil
}
