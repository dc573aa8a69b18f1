// internal/resolver/resolver.go
//
// (hostname, path) → content resolution.
//
/*
Context
--------
Given an eligible domain record and a normalized request path, pick the one
document to serve.  Three strategies run in priority order:

 1. Domain connection — an explicit override row mapping the domain and a
    path pattern to a website or funnel.  An exact pattern match beats any
    prefix match; among prefix matches the most specific (longest) pattern
    wins, then the most recently created row.
 2. Store website — the domain's owning store has at most one published,
    active website.  Root resolves to the homepage-flagged page; any other
    path is stripped of its leading slash and matched as a slug.
 3. Store funnels — the equivalent lookup over the store's funnel steps.

Preview requests may match unpublished content; everything else is
restricted to published rows.

A homepage lookup that finds multiple flagged pages is a data-integrity
condition: the resolver takes the first match (lowest id) and logs a WARN
instead of failing the request, because availability beats strict
consistency on a public storefront.
*/
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schalder/ecombuildr-edge/internal/content"
	"github.com/schalder/ecombuildr-edge/internal/domain"
)

// ErrNoMatch is returned when no strategy yields a servable document.
var ErrNoMatch = errors.New("no content matches request")

// Resolver is stateless apart from its database handle; safe for concurrent
// use.
type Resolver struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Resolver { return &Resolver{db: db} }

// Resolve maps a request path on rec's domain to a content reference.
func (r *Resolver) Resolve(ctx context.Context, rec *domain.CustomDomain, path string, preview bool) (content.Ref, error) {
	path = NormalizePath(path)

	// Strategy 1: explicit domain connection.
	conns, err := domain.ConnectionsByDomain(ctx, r.db, rec.Domain)
	if err != nil {
		return content.Ref{}, fmt.Errorf("load connections for %s: %w", rec.Domain, err)
	}
	if conn := bestConnection(conns, path); conn != nil {
		ref, err := r.resolveConnection(ctx, conn, path, preview)
		if err == nil {
			return ref, nil
		}
		if !errors.Is(err, content.ErrNotFound) {
			return content.Ref{}, err
		}
		// Connection points at deleted or unpublished content: log and fall
		// through to default resolution rather than 404 outright.
		zap.S().Warnw("domain connection matched but content unavailable",
			"domain", rec.Domain,
			"pattern", conn.PathPattern,
			"content_type", conn.ContentType,
			"content_id", conn.ContentID,
		)
	}

	// Strategy 2: store website.
	if ref, err := r.resolveWebsite(ctx, rec.StoreID, path, preview); err == nil {
		return ref, nil
	} else if !errors.Is(err, content.ErrNotFound) {
		return content.Ref{}, err
	}

	// Strategy 3: store funnels.
	if ref, err := r.resolveFunnels(ctx, rec.StoreID, path, preview); err == nil {
		return ref, nil
	} else if !errors.Is(err, content.ErrNotFound) {
		return content.Ref{}, err
	}

	return content.Ref{}, ErrNoMatch
}

//
// Strategy 1: connections
//

// bestConnection picks the winning override for path, or nil.  Rows arrive
// newest-first from the registry, so a plain first-match implements the
// recency tie-break.
func bestConnection(conns []domain.Connection, path string) *domain.Connection {
	// Exact pass.
	for i := range conns {
		c := &conns[i]
		if c.MatchType == domain.MatchExact && NormalizePath(c.PathPattern) == path {
			return c
		}
	}
	// Prefix pass: longest pattern wins, then recency.
	var best *domain.Connection
	for i := range conns {
		c := &conns[i]
		if c.MatchType != domain.MatchPrefix {
			continue
		}
		if !matchesPrefix(path, NormalizePath(c.PathPattern)) {
			continue
		}
		if best == nil || len(c.PathPattern) > len(best.PathPattern) {
			best = c
		}
	}
	return best
}

// matchesPrefix reports whether path falls under pattern on a path-segment
// boundary: "/shop" matches "/shop" and "/shop/x" but not "/shopping".
func matchesPrefix(path, pattern string) bool {
	if pattern == "/" {
		return true
	}
	if !strings.HasPrefix(path, pattern) {
		return false
	}
	rest := path[len(pattern):]
	return rest == "" || rest[0] == '/'
}

// resolveConnection resolves path inside the connected content object.  The
// portion of the path beyond the pattern becomes the slug; an empty
// remainder resolves to the object's homepage.
func (r *Resolver) resolveConnection(ctx context.Context, conn *domain.Connection, path string, preview bool) (content.Ref, error) {
	slug := connectionSlug(path, NormalizePath(conn.PathPattern))

	switch conn.ContentType {
	case domain.ConnWebsite:
		w, err := content.WebsiteByID(ctx, r.db, conn.ContentID)
		if err != nil {
			return content.Ref{}, err
		}
		return r.pageInWebsite(ctx, w.ID, slug, preview)

	case domain.ConnFunnel:
		f, err := content.FunnelByID(ctx, r.db, conn.ContentID)
		if err != nil {
			return content.Ref{}, err
		}
		return r.stepInFunnel(ctx, f.ID, slug, preview)

	default:
		return content.Ref{}, fmt.Errorf("connection %d has unknown content type %q",
			conn.ID, conn.ContentType)
	}
}

// connectionSlug strips the matched pattern off the path and trims slashes;
// "" means the object root.
func connectionSlug(path, pattern string) string {
	if pattern == "/" {
		return strings.Trim(path, "/")
	}
	return strings.Trim(strings.TrimPrefix(path, pattern), "/")
}

//
// Strategy 2: website
//

func (r *Resolver) resolveWebsite(ctx context.Context, storeID uint64, path string, preview bool) (content.Ref, error) {
	w, err := content.ActiveWebsiteByStore(ctx, r.db, storeID)
	if err != nil {
		return content.Ref{}, err
	}
	return r.pageInWebsite(ctx, w.ID, strings.Trim(path, "/"), preview)
}

func (r *Resolver) pageInWebsite(ctx context.Context, websiteID uint64, slug string, preview bool) (content.Ref, error) {
	if slug == "" {
		pages, err := content.HomepageCandidates(ctx, r.db, websiteID, preview)
		if err != nil {
			return content.Ref{}, err
		}
		if len(pages) == 0 {
			return content.Ref{}, content.ErrNotFound
		}
		if len(pages) > 1 {
			zap.S().Warnw("multiple homepage-flagged pages, serving first match",
				"website_id", websiteID, "page_id", pages[0].ID)
		}
		return content.Ref{Kind: content.KindWebsitePage, ID: pages[0].ID, ParentID: websiteID}, nil
	}

	p, err := content.PageBySlug(ctx, r.db, websiteID, slug, preview)
	if err != nil {
		return content.Ref{}, err
	}
	return content.Ref{Kind: content.KindWebsitePage, ID: p.ID, ParentID: websiteID}, nil
}

//
// Strategy 3: funnels
//

func (r *Resolver) resolveFunnels(ctx context.Context, storeID uint64, path string, preview bool) (content.Ref, error) {
	slug := strings.Trim(path, "/")

	if slug == "" {
		steps, err := content.StoreHomepageStepCandidates(ctx, r.db, storeID, preview)
		if err != nil {
			return content.Ref{}, err
		}
		if len(steps) == 0 {
			return content.Ref{}, content.ErrNotFound
		}
		if len(steps) > 1 {
			zap.S().Warnw("multiple homepage-flagged funnel steps, serving first match",
				"store_id", storeID, "step_id", steps[0].ID)
		}
		return content.Ref{Kind: content.KindFunnelStep, ID: steps[0].ID, ParentID: steps[0].FunnelID}, nil
	}

	s, err := content.StoreStepBySlug(ctx, r.db, storeID, slug, preview)
	if err != nil {
		return content.Ref{}, err
	}
	return content.Ref{Kind: content.KindFunnelStep, ID: s.ID, ParentID: s.FunnelID}, nil
}

func (r *Resolver) stepInFunnel(ctx context.Context, funnelID uint64, slug string, preview bool) (content.Ref, error) {
	if slug == "" {
		steps, err := content.StepHomepageCandidates(ctx, r.db, funnelID, preview)
		if err != nil {
			return content.Ref{}, err
		}
		if len(steps) == 0 {
			return content.Ref{}, content.ErrNotFound
		}
		if len(steps) > 1 {
			zap.S().Warnw("multiple homepage-flagged funnel steps, serving first match",
				"funnel_id", funnelID, "step_id", steps[0].ID)
		}
		return content.Ref{Kind: content.KindFunnelStep, ID: steps[0].ID, ParentID: funnelID}, nil
	}

	s, err := content.StepBySlug(ctx, r.db, funnelID, slug, preview)
	if err != nil {
		return content.Ref{}, err
	}
	return content.Ref{Kind: content.KindFunnelStep, ID: s.ID, ParentID: funnelID}, nil
}

//
// Path helpers
//

// NormalizePath guarantees exactly one leading slash, no trailing slash
// (except root), and no duplicate separators.
func NormalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return "/"
	}
	return "/" + strings.Join(parts, "/")
}
