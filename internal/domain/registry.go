// internal/domain/registry.go
//
// Query helpers for the `custom_domains` and `domain_connections` tables.
//
// Context
// -------
// These functions provide the read surface for the serving path and the
// read/write surface for the lifecycle poller:
//
//   - `Resolve`      — serving path; only fully eligible rows come back.
//   - `ByDomain`     — lifecycle and admin; no eligibility filter.
//   - `Provisioning` — poller scan of in-flight domains.
//   - `Register`, `SaveObservation`, `Deactivate` — lifecycle writes.
//   - `ConnectionsByDomain` — resolver override lookup.
//
// Workflow
// --------
//  1. Callers supply a *sqlx.DB connected to the control-plane database.
//  2. Each helper executes exactly one parameterised statement.
//  3. Errors are returned verbatim so the caller can wrap or log them with
//     the project logger; `sql.ErrNoRows` maps to ErrNotFound here.
//
// Notes
// -----
//   - Column lists match the model structs; update both together.
//   - Eligibility lives in SQL for `Resolve` so a partially provisioned
//     domain can never be returned by the serving path, even under races
//     with the poller.
package domain

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a hostname has no (eligible) registry row.
var ErrNotFound = errors.New("domain not found")

const domainCols = `id, domain, store_id, status, is_verified, dns_configured,
       ssl_status, last_error, last_checked_at, deactivated_at,
       created_at, updated_at`

// Resolve fetches a single fully eligible row for host: verified, DNS
// configured, certificate issued, not deactivated.
func Resolve(ctx context.Context, db *sqlx.DB, host string) (*CustomDomain, error) {
	const q = `
        SELECT ` + domainCols + `
        FROM   custom_domains
        WHERE  domain = ?
          AND  is_verified    = 1
          AND  dns_configured = 1
          AND  ssl_status     = 'issued'
          AND  deactivated_at IS NULL
        LIMIT  1`
	var rec CustomDomain
	if err := db.GetContext(ctx, &rec, q, host); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ByDomain fetches a row regardless of eligibility.  Lifecycle and admin
// callers use this; the serving path must use Resolve.
func ByDomain(ctx context.Context, db *sqlx.DB, host string) (*CustomDomain, error) {
	const q = `
        SELECT ` + domainCols + `
        FROM   custom_domains
        WHERE  domain = ?
        LIMIT  1`
	var rec CustomDomain
	if err := db.GetContext(ctx, &rec, q, host); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Provisioning returns every non-deactivated domain still moving through the
// state machine.  Used by the poller; verified and failed rows are excluded
// (failed rows re-enter via an explicit retry).
func Provisioning(ctx context.Context, db *sqlx.DB) ([]CustomDomain, error) {
	const q = `
        SELECT ` + domainCols + `
        FROM   custom_domains
        WHERE  status IN ('registering', 'dns_pending', 'ssl_provisioning')
          AND  deactivated_at IS NULL`
	var rows []CustomDomain
	if err := db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

// Register inserts a new claim in the `registering` state, or revives an
// existing row for the same hostname (retry after failure, re-activation).
// The upsert relies on the unique key on `domain`.
func Register(ctx context.Context, db *sqlx.DB, host string, storeID uint64) error {
	const q = `
        INSERT INTO custom_domains
               (domain, store_id, status, is_verified, dns_configured, ssl_status)
        VALUES (?, ?, 'registering', 0, 0, 'pending')
        ON DUPLICATE KEY UPDATE
               store_id       = VALUES(store_id),
               status         = 'registering',
               is_verified    = 0,
               dns_configured = 0,
               ssl_status     = 'pending',
               last_error     = NULL,
               deactivated_at = NULL`
	_, err := db.ExecContext(ctx, q, host, storeID)
	return err
}

// SaveObservation persists one poll result: the aggregate state, both
// sub-statuses, and the check timestamp.  Called on every poll even when the
// aggregate state did not advance.
func SaveObservation(ctx context.Context, db *sqlx.DB, rec *CustomDomain) error {
	const q = `
        UPDATE custom_domains
        SET    status          = ?,
               is_verified     = ?,
               dns_configured  = ?,
               ssl_status      = ?,
               last_error      = ?,
               last_checked_at = ?
        WHERE  id = ?`
	now := time.Now().UTC()
	rec.LastCheckedAt = &now
	_, err := db.ExecContext(ctx, q,
		rec.Status, rec.IsVerified, rec.DNSConfigured, rec.SSLStatus,
		rec.LastError, rec.LastCheckedAt, rec.ID)
	return err
}

// Deactivate soft-disables a domain.  Rows stay behind for any
// domain_connections that still reference them.
func Deactivate(ctx context.Context, db *sqlx.DB, host string) error {
	const q = `
        UPDATE custom_domains
        SET    deactivated_at = ?
        WHERE  domain = ? AND deactivated_at IS NULL`
	res, err := db.ExecContext(ctx, q, time.Now().UTC(), host)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConnectionsByDomain returns every override row for a hostname, newest
// first so the resolver's tie-break is a stable first-match.
func ConnectionsByDomain(ctx context.Context, db *sqlx.DB, host string) ([]Connection, error) {
	const q = `
        SELECT id, domain, path_pattern, match_type, content_type, content_id,
               created_at
        FROM   domain_connections
        WHERE  domain = ?
        ORDER  BY created_at DESC, id DESC`
	var rows []Connection
	if err := db.SelectContext(ctx, &rows, q, host); err != nil {
		return nil, err
	}
	return rows, nil
}
