// internal/snapshot/store.go
//
// Two-tier snapshot lookup.
//
// Context
// -------
// Most tenants reuse the default rendering across every domain they attach,
// while some override per-domain (localized branding, alternate pixels).
// Lookup therefore walks an ordered list of keys: the domain-specific row
// first, the NULL-domain default second.  The tiering is an explicit slice
// rather than nested branches so a third tier (say, locale-specific) slots
// in without restructuring control flow.
//
// No invalidation logic lives here; staleness is the generator's problem.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schalder/ecombuildr-edge/internal/content"
	"github.com/schalder/ecombuildr-edge/internal/metrics"
)

// ErrMiss is returned when no tier holds a snapshot for the reference.
var ErrMiss = errors.New("snapshot miss")

// Lookup tiers, reported to callers for headers and metrics.
const (
	TierDomain  = "domain"
	TierDefault = "default"
)

// Store reads the html_snapshots table.  Safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// tierKey is one entry in the ordered lookup list.
type tierKey struct {
	tier   string
	domain *string // nil selects the NULL-domain default row
}

// Get returns the snapshot for ref, preferring the customDomain-specific row
// and falling back to the default.  The returned tier names which key hit.
func (s *Store) Get(ctx context.Context, ref content.Ref, customDomain string) (*Snapshot, string, error) {
	keys := make([]tierKey, 0, 2)
	if customDomain != "" {
		d := customDomain
		keys = append(keys, tierKey{tier: TierDomain, domain: &d})
	}
	keys = append(keys, tierKey{tier: TierDefault, domain: nil})

	for _, k := range keys {
		snap, err := s.getOne(ctx, ref, k.domain)
		if err == nil {
			metrics.SnapshotHitTotal.WithLabelValues(k.tier).Inc()
			return snap, k.tier, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, "", fmt.Errorf("snapshot lookup %s tier %s: %w", ref, k.tier, err)
		}
	}

	metrics.SnapshotMissTotal.Inc()
	return nil, "", ErrMiss
}

func (s *Store) getOne(ctx context.Context, ref content.Ref, domain *string) (*Snapshot, error) {
	const base = `
        SELECT id, content_type, content_id, custom_domain, html, generated_at
        FROM   html_snapshots
        WHERE  content_type = ?
          AND  content_id   = ?`

	var snap Snapshot
	if domain != nil {
		err := s.db.GetContext(ctx, &snap, base+`
          AND  custom_domain = ?
        LIMIT  1`, string(ref.Kind), ref.ID, *domain)
		if err != nil {
			return nil, err
		}
		return &snap, nil
	}

	err := s.db.GetContext(ctx, &snap, base+`
          AND  custom_domain IS NULL
        LIMIT  1`, string(ref.Kind), ref.ID)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
