// internal/domain/model.go
//
// `custom_domains` and `domain_connections` row models.
//
// Context
// -------
// A CustomDomain is a tenant's claim on an external hostname.  It carries the
// aggregate lifecycle state plus the two observed sub-statuses (DNS and
// certificate) that the poller persists on every check, so operators can
// diagnose stuck provisioning even when the aggregate state does not move.
//
// Schema reference (2026-07-12)
//
//	CREATE TABLE custom_domains (
//	    id             BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    domain         VARCHAR(256)  NOT NULL UNIQUE,
//	    store_id       BIGINT UNSIGNED NOT NULL,
//	    status         VARCHAR(20)   NOT NULL DEFAULT 'unregistered',
//	    is_verified    TINYINT(1)    NOT NULL DEFAULT 0,
//	    dns_configured TINYINT(1)    NOT NULL DEFAULT 0,
//	    ssl_status     VARCHAR(20)   NOT NULL DEFAULT 'pending',
//	    last_error     VARCHAR(512)  NULL,
//	    last_checked_at TIMESTAMP    NULL,
//	    deactivated_at TIMESTAMP     NULL,
//	    created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
//	);
//
//	CREATE TABLE domain_connections (
//	    id           BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
//	    domain       VARCHAR(256) NOT NULL,
//	    path_pattern VARCHAR(512) NOT NULL,
//	    match_type   VARCHAR(6)   NOT NULL DEFAULT 'exact',
//	    content_type VARCHAR(16)  NOT NULL,
//	    content_id   BIGINT UNSIGNED NOT NULL,
//	    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
//	    KEY idx_connections_domain (domain)
//	);
//
// Notes
// -----
//   - Domains referenced by connection rows are never hard-deleted; the
//     dashboard soft-deactivates them via `deactivated_at`.
//   - Nullable timestamps are `*time.Time`; callers must nil-check before use.
package domain

import "time"

//
// Lifecycle states (aggregate `status` column)
//

const (
	StateUnregistered    = "unregistered"
	StateRegistering     = "registering"
	StateDNSPending      = "dns_pending"
	StateSSLProvisioning = "ssl_provisioning"
	StateVerified        = "verified"
	StateFailed          = "failed"
)

//
// Certificate states (`ssl_status` column)
//

const (
	SSLPending      = "pending"
	SSLProvisioning = "provisioning"
	SSLIssued       = "issued"
	SSLFailed       = "failed"
)

// CustomDomain mirrors one row in `custom_domains`.
type CustomDomain struct {
	ID            uint64     `db:"id"`
	Domain        string     `db:"domain"`
	StoreID       uint64     `db:"store_id"`
	Status        string     `db:"status"`
	IsVerified    bool       `db:"is_verified"`
	DNSConfigured bool       `db:"dns_configured"`
	SSLStatus     string     `db:"ssl_status"`
	LastError     *string    `db:"last_error"`
	LastCheckedAt *time.Time `db:"last_checked_at"`
	DeactivatedAt *time.Time `db:"deactivated_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Eligible reports whether the domain may serve tenant traffic: verified,
// DNS-configured, certificate issued, and not soft-deactivated.  Partially
// provisioned domains fall through to a 404 at the boundary.
func (d *CustomDomain) Eligible() bool {
	return d.IsVerified &&
		d.DNSConfigured &&
		d.SSLStatus == SSLIssued &&
		d.DeactivatedAt == nil
}

//
// Connection kinds (`content_type` column)
//

const (
	ConnWebsite = "website"
	ConnFunnel  = "funnel"
)

// Match types for connection path patterns.
const (
	MatchExact  = "exact"
	MatchPrefix = "prefix"
)

// Connection mirrors one row in `domain_connections`: an explicit override
// mapping a domain + path pattern to a website or funnel, bypassing default
// store resolution.  Multiple rows may exist per domain; the resolver picks
// the most specific, most recently created match.
type Connection struct {
	ID          uint64    `db:"id"`
	Domain      string    `db:"domain"`
	PathPattern string    `db:"path_pattern"`
	MatchType   string    `db:"match_type"`
	ContentType string    `db:"content_type"`
	ContentID   uint64    `db:"content_id"`
	CreatedAt   time.Time `db:"created_at"`
}
