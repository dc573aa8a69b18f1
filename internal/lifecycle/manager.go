// internal/lifecycle/manager.go
//
// Domain provisioning state machine.
//
/*
Context
--------
A tenant-supplied domain moves through

	unregistered → registering → dns_pending → ssl_provisioning → verified

with any state able to drop to `failed` on a provider error, and `failed`
able to re-enter `registering` via an explicit retry.  Only `verified`
domains (verification flag, DNS flag, and an issued certificate) serve
traffic; the registry's eligibility filter enforces that independently.

Each poll advances at most one state and always persists the observed
sub-statuses (dns_configured, ssl_status) plus last_checked_at, even when
the aggregate state does not move, so operators can diagnose stuck
provisioning from the row alone.

Provider failures and DNS timeouts are recorded and left for the next
scheduled poll; nothing is retried inline.
*/
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/schalder/ecombuildr-edge/internal/domain"
	"github.com/schalder/ecombuildr-edge/internal/metrics"
	"github.com/schalder/ecombuildr-edge/internal/provider"
)

// Provider is the slice of the hosting API the manager drives.  Satisfied
// by *provider.Client; tests substitute fakes.
type Provider interface {
	Register(ctx context.Context, domain string) error
	Deregister(ctx context.Context, domain string) error
	GetStatus(ctx context.Context, domain string) (*provider.Status, error)
}

// Manager drives domain rows through provisioning.
type Manager struct {
	db       *sqlx.DB
	prov     Provider
	dns      *DNSChecker
	interval time.Duration
}

// NewManager constructs a Manager.  interval tunes the background scan.
func NewManager(db *sqlx.DB, prov Provider, dns *DNSChecker, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Manager{db: db, prov: prov, dns: dns, interval: interval}
}

//
// Tenant-facing operations
//

// Register claims a hostname for a store and submits it to the provider.
// The row lands in `registering`; polling takes it from there.
func (m *Manager) Register(ctx context.Context, host string, storeID uint64) error {
	if err := domain.Register(ctx, m.db, host, storeID); err != nil {
		return fmt.Errorf("register %s: %w", host, err)
	}
	if err := m.prov.Register(ctx, host); err != nil {
		m.markFailed(ctx, host, err)
		return err
	}
	zap.S().Infow("domain registered with provider", "domain", host, "store_id", storeID)
	return nil
}

// Retry re-enters a failed domain into `registering`.
func (m *Manager) Retry(ctx context.Context, host string) error {
	rec, err := domain.ByDomain(ctx, m.db, host)
	if err != nil {
		return err
	}
	if rec.Status != domain.StateFailed {
		return fmt.Errorf("domain %s is %s, not failed", host, rec.Status)
	}
	return m.Register(ctx, host, rec.StoreID)
}

// Deregister releases the claim with the provider and soft-deactivates the
// row.  Connection rows referencing the domain stay behind.
func (m *Manager) Deregister(ctx context.Context, host string) error {
	if err := m.prov.Deregister(ctx, host); err != nil {
		zap.S().Warnw("provider deregister failed, deactivating anyway",
			"domain", host, "err", err)
	}
	return domain.Deactivate(ctx, m.db, host)
}

//
// Polling
//

// Run scans provisioning domains every interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	t := time.NewTicker(m.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		rows, err := domain.Provisioning(ctx, m.db)
		if err != nil {
			zap.S().Errorw("lifecycle scan failed", "err", err)
			continue
		}
		for i := range rows {
			if err := m.Poll(ctx, &rows[i]); err != nil {
				zap.S().Warnw("lifecycle poll failed",
					"domain", rows[i].Domain, "state", rows[i].Status, "err", err)
			}
		}
	}
}

// Poll advances rec by at most one state and persists the observation.
func (m *Manager) Poll(ctx context.Context, rec *domain.CustomDomain) error {
	switch rec.Status {
	case domain.StateRegistering:
		st, err := m.prov.GetStatus(ctx, rec.Domain)
		if err != nil {
			return m.fail(ctx, rec, err)
		}
		rec.SSLStatus = certState(st.CertificateState)
		if st.Registered {
			rec.Status = domain.StateDNSPending
		}

	case domain.StateDNSPending:
		ok, err := m.dns.PointsAtPlatform(ctx, rec.Domain)
		if err != nil {
			// Timeout or resolver failure means "not yet verified": record
			// the observation, stay in dns_pending for the next poll.
			zap.S().Infow("dns check inconclusive",
				"domain", rec.Domain, "err", err)
			rec.DNSConfigured = false
			break
		}
		rec.DNSConfigured = ok
		if ok {
			rec.Status = domain.StateSSLProvisioning
		}

	case domain.StateSSLProvisioning:
		st, err := m.prov.GetStatus(ctx, rec.Domain)
		if err != nil {
			return m.fail(ctx, rec, err)
		}
		rec.SSLStatus = certState(st.CertificateState)
		switch rec.SSLStatus {
		case domain.SSLFailed:
			return m.fail(ctx, rec,
				fmt.Errorf("certificate issuance failed for %s", rec.Domain))
		case domain.SSLIssued:
			if st.Registered && rec.DNSConfigured {
				rec.Status = domain.StateVerified
				rec.IsVerified = true
				zap.S().Infow("domain verified", "domain", rec.Domain)
			}
		}

	default:
		return nil // verified, failed, and unregistered rows are not polled
	}

	metrics.LifecyclePollTotal.WithLabelValues(rec.Status).Inc()
	return domain.SaveObservation(ctx, m.db, rec)
}

//
// Failure handling
//

func (m *Manager) fail(ctx context.Context, rec *domain.CustomDomain, cause error) error {
	msg := truncate(cause.Error(), 512)
	rec.Status = domain.StateFailed
	rec.IsVerified = false
	rec.LastError = &msg

	zap.S().Errorw("domain provisioning failed",
		"domain", rec.Domain, "err", cause)
	metrics.LifecyclePollTotal.WithLabelValues(domain.StateFailed).Inc()
	return domain.SaveObservation(ctx, m.db, rec)
}

func (m *Manager) markFailed(ctx context.Context, host string, cause error) {
	rec, err := domain.ByDomain(ctx, m.db, host)
	if err != nil {
		zap.S().Errorw("cannot mark domain failed", "domain", host, "err", err)
		return
	}
	_ = m.fail(ctx, rec, cause)
}

// certState maps a provider certificate state onto the registry enum.
// Unknown values collapse to pending so a provider rollout cannot wedge a
// domain into a non-enum state.
func certState(s string) string {
	switch s {
	case domain.SSLPending, domain.SSLProvisioning, domain.SSLIssued, domain.SSLFailed:
		return s
	default:
		return domain.SSLPending
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
