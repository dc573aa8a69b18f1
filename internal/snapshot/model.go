// internal/snapshot/model.go
//
// `html_snapshots` row model.
//
// Schema reference (2026-07-12)
//
//	CREATE TABLE html_snapshots (
//	    id            BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    content_type  VARCHAR(16)   NOT NULL,
//	    content_id    BIGINT UNSIGNED NOT NULL,
//	    custom_domain VARCHAR(256)  NULL,
//	    html          MEDIUMTEXT    NOT NULL,
//	    generated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    UNIQUE KEY uq_snapshot (content_type, content_id, custom_domain)
//	);
//
// Notes
// -----
//   - custom_domain NULL is the default/canonical rendering shared by every
//     domain that has no per-domain override.
//   - Rows are written exclusively by the external renderer as upserts on
//     the unique key; the edge only ever reads them.  Staleness is bounded
//     by the content owner re-triggering generation after edits.
package snapshot

import "time"

// Snapshot mirrors one row in `html_snapshots`.
type Snapshot struct {
	ID           uint64    `db:"id"`
	ContentType  string    `db:"content_type"`
	ContentID    uint64    `db:"content_id"`
	CustomDomain *string   `db:"custom_domain"`
	HTML         string    `db:"html"`
	GeneratedAt  time.Time `db:"generated_at"`
}
