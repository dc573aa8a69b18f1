// internal/lifecycle/manager_test.go
//
// State-machine tests for the provisioning poller.  The provider is faked,
// DNS answers come from fakeResolver (dns_test.go), and registry writes are
// asserted with sqlmock.
//
// Run: go test ./internal/lifecycle -v
package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/schalder/ecombuildr-edge/internal/domain"
	"github.com/schalder/ecombuildr-edge/internal/provider"
)

// fakeProvider satisfies Provider with canned answers.
type fakeProvider struct {
	status       *provider.Status
	statusErr    error
	registerErr  error
	registered   []string
	deregistered []string
}

func (f *fakeProvider) Register(_ context.Context, d string) error {
	f.registered = append(f.registered, d)
	return f.registerErr
}

func (f *fakeProvider) Deregister(_ context.Context, d string) error {
	f.deregistered = append(f.deregistered, d)
	return nil
}

func (f *fakeProvider) GetStatus(_ context.Context, _ string) (*provider.Status, error) {
	return f.status, f.statusErr
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func newTestManager(db *sqlx.DB, prov Provider, resolver lookuper) *Manager {
	dns := NewDNSChecker(resolver, []string{"edge.ecombuildr.net"}, time.Second)
	return NewManager(db, prov, dns, time.Minute)
}

func expectObservation(mock sqlmock.Sqlmock) {
	mock.ExpectExec(`UPDATE custom_domains SET status`).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestPoll_RegisteringAdvancesToDNSPending(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{status: &provider.Status{Registered: true, CertificateState: "pending"}}
	m := newTestManager(db, prov, &fakeResolver{})

	expectObservation(mock)

	rec := &domain.CustomDomain{ID: 1, Domain: "shop.example.com", Status: domain.StateRegistering}
	if err := m.Poll(context.Background(), rec); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if rec.Status != domain.StateDNSPending {
		t.Errorf("status = %q, want %q", rec.Status, domain.StateDNSPending)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestPoll_DNSTimeoutStaysPending(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{}
	m := newTestManager(db, prov, &fakeResolver{err: errors.New("i/o timeout")})

	// The observation is still written so last_checked_at advances.
	expectObservation(mock)

	rec := &domain.CustomDomain{ID: 1, Domain: "shop.example.com", Status: domain.StateDNSPending}
	if err := m.Poll(context.Background(), rec); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if rec.Status != domain.StateDNSPending {
		t.Errorf("status = %q, want unchanged %q", rec.Status, domain.StateDNSPending)
	}
	if rec.DNSConfigured {
		t.Error("an inconclusive check must not mark DNS configured")
	}
}

func TestPoll_DNSConfiguredAdvances(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{}
	m := newTestManager(db, prov, &fakeResolver{
		cnames: map[string]string{"shop.example.com": "edge.ecombuildr.net."},
	})

	expectObservation(mock)

	rec := &domain.CustomDomain{ID: 1, Domain: "shop.example.com", Status: domain.StateDNSPending}
	if err := m.Poll(context.Background(), rec); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if rec.Status != domain.StateSSLProvisioning {
		t.Errorf("status = %q, want %q", rec.Status, domain.StateSSLProvisioning)
	}
	if !rec.DNSConfigured {
		t.Error("DNSConfigured not set")
	}
}

func TestPoll_CertIssuedVerifies(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{status: &provider.Status{Registered: true, CertificateState: "issued"}}
	m := newTestManager(db, prov, &fakeResolver{})

	expectObservation(mock)

	rec := &domain.CustomDomain{
		ID: 1, Domain: "shop.example.com",
		Status: domain.StateSSLProvisioning, DNSConfigured: true,
	}
	if err := m.Poll(context.Background(), rec); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if rec.Status != domain.StateVerified || !rec.IsVerified {
		t.Errorf("record not verified: %+v", rec)
	}
	if rec.SSLStatus != domain.SSLIssued {
		t.Errorf("ssl_status = %q, want %q", rec.SSLStatus, domain.SSLIssued)
	}
}

func TestPoll_CertFailureFails(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{status: &provider.Status{Registered: true, CertificateState: "failed"}}
	m := newTestManager(db, prov, &fakeResolver{})

	expectObservation(mock)

	rec := &domain.CustomDomain{
		ID: 1, Domain: "shop.example.com",
		Status: domain.StateSSLProvisioning, DNSConfigured: true,
	}
	if err := m.Poll(context.Background(), rec); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if rec.Status != domain.StateFailed {
		t.Errorf("status = %q, want %q", rec.Status, domain.StateFailed)
	}
	if rec.LastError == nil || *rec.LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestPoll_ProviderErrorFails(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{statusErr: errors.New("provider 502")}
	m := newTestManager(db, prov, &fakeResolver{})

	expectObservation(mock)

	rec := &domain.CustomDomain{ID: 1, Domain: "shop.example.com", Status: domain.StateRegistering}
	if err := m.Poll(context.Background(), rec); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if rec.Status != domain.StateFailed || rec.IsVerified {
		t.Errorf("record not failed: %+v", rec)
	}
}

func TestRegister_ProviderFailureMarksFailed(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{registerErr: errors.New("quota exceeded")}
	m := newTestManager(db, prov, &fakeResolver{})

	mock.ExpectExec(`INSERT INTO custom_domains`).
		WithArgs("shop.example.com", uint64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? LIMIT 1`).
		WithArgs("shop.example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "domain", "store_id", "status", "is_verified", "dns_configured",
			"ssl_status", "last_error", "last_checked_at", "deactivated_at",
			"created_at", "updated_at",
		}).AddRow(1, "shop.example.com", 7, domain.StateRegistering, false, false,
			domain.SSLPending, nil, nil, nil, time.Now(), time.Now()))
	expectObservation(mock)

	if err := m.Register(context.Background(), "shop.example.com", 7); err == nil {
		t.Fatal("Register must surface the provider error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRetry_OnlyFromFailed(t *testing.T) {
	db, mock := newMockDB(t)
	prov := &fakeProvider{}
	m := newTestManager(db, prov, &fakeResolver{})

	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? LIMIT 1`).
		WithArgs("shop.example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "domain", "store_id", "status", "is_verified", "dns_configured",
			"ssl_status", "last_error", "last_checked_at", "deactivated_at",
			"created_at", "updated_at",
		}).AddRow(1, "shop.example.com", 7, domain.StateVerified, true, true,
			domain.SSLIssued, nil, nil, nil, time.Now(), time.Now()))

	if err := m.Retry(context.Background(), "shop.example.com"); err == nil {
		t.Fatal("Retry must refuse a non-failed domain")
	}
	if len(prov.registered) != 0 {
		t.Error("provider must not be re-invoked for a non-failed domain")
	}
}
