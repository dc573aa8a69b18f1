// internal/content/model.go
//
// Content reference sum type and collaborator row models.
//
// Context
// -------
// The edge reads, never writes, the content tables owned by the page
// builder: a *website* has many *website pages*; a *funnel* has many *funnel
// steps*.  Each page/step carries a slug (unique within its parent), a
// homepage flag (at most one true per parent), and a published flag.
//
// A Ref names exactly one servable document: a website page or a funnel
// step.  Keeping the kind as a closed two-value tag lets the resolver and
// snapshot store branch exhaustively instead of duck-typing.
//
// Notes
// -----
//   - The homepage-flag uniqueness belongs to the dashboard as a write-time
//     unique index on (parent_id, is_homepage=1); until it lands there, the
//     resolver tolerates multiplicity with a first-match tie-break and a
//     WARN log.
package content

import (
	"fmt"
	"time"
)

//
// Content kinds
//

// Kind tags a Ref.  Values double as the `content_type` discriminator in
// the html_snapshots table.
type Kind string

const (
	KindWebsitePage Kind = "website_page"
	KindFunnelStep  Kind = "funnel_step"
)

// Ref names one servable document.
type Ref struct {
	Kind     Kind
	ID       uint64 // page or step id
	ParentID uint64 // owning website or funnel id
}

// String renders "website_page/42" for logs and singleflight keys.
func (r Ref) String() string { return fmt.Sprintf("%s/%d", r.Kind, r.ID) }

//
// Collaborator rows (read-only)
//

// Website mirrors the columns the edge reads from `websites`.
type Website struct {
	ID       uint64 `db:"id"`
	StoreID  uint64 `db:"store_id"`
	Status   string `db:"status"` // 'draft' | 'published'
	IsActive bool   `db:"is_active"`
}

// Page mirrors the columns the edge reads from `website_pages`.
type Page struct {
	ID          uint64    `db:"id"`
	WebsiteID   uint64    `db:"website_id"`
	Slug        string    `db:"slug"`
	IsHomepage  bool      `db:"is_homepage"`
	IsPublished bool      `db:"is_published"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Funnel mirrors the columns the edge reads from `funnels`.
type Funnel struct {
	ID       uint64 `db:"id"`
	StoreID  uint64 `db:"store_id"`
	Status   string `db:"status"`
	IsActive bool   `db:"is_active"`
}

// Step mirrors the columns the edge reads from `funnel_steps`.
type Step struct {
	ID          uint64    `db:"id"`
	FunnelID    uint64    `db:"funnel_id"`
	Slug        string    `db:"slug"`
	IsHomepage  bool      `db:"is_homepage"`
	IsPublished bool      `db:"is_published"`
	UpdatedAt   time.Time `db:"updated_at"`
}
