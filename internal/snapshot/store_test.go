// internal/snapshot/store_test.go
//
// Unit-tests for the two-tier snapshot lookup.
//
// Run: go test ./internal/snapshot -v
package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/schalder/ecombuildr-edge/internal/content"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

var snapColumns = []string{
	"id", "content_type", "content_id", "custom_domain", "html", "generated_at",
}

func snapRow(id uint64, ref content.Ref, domain *string, html string) *sqlmock.Rows {
	return sqlmock.NewRows(snapColumns).
		AddRow(id, string(ref.Kind), ref.ID, domain, html, time.Now())
}

var testRef = content.Ref{Kind: content.KindWebsitePage, ID: 42, ParentID: 7}

func TestGet_DomainTierHit(t *testing.T) {
	s, mock := newMockStore(t)
	host := "shop.example.com"

	mock.ExpectQuery(`FROM html_snapshots WHERE content_type = \? AND content_id = \? AND custom_domain = \?`).
		WithArgs("website_page", uint64(42), host).
		WillReturnRows(snapRow(1, testRef, &host, "<html>branded</html>"))

	snap, tier, err := s.Get(context.Background(), testRef, host)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tier != TierDomain {
		t.Errorf("tier = %q, want %q", tier, TierDomain)
	}
	if snap.HTML != "<html>branded</html>" {
		t.Errorf("html = %q", snap.HTML)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGet_FallsBackToDefaultTier(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WithArgs("website_page", uint64(42), "shop.example.com").
		WillReturnRows(sqlmock.NewRows(snapColumns))
	mock.ExpectQuery(`AND custom_domain IS NULL LIMIT 1`).
		WithArgs("website_page", uint64(42)).
		WillReturnRows(snapRow(2, testRef, nil, "<html>default</html>"))

	snap, tier, err := s.Get(context.Background(), testRef, "shop.example.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tier != TierDefault {
		t.Errorf("tier = %q, want %q", tier, TierDefault)
	}
	if snap.CustomDomain != nil {
		t.Error("default-tier snapshot must carry a NULL domain")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGet_DoubleMiss(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(snapColumns))
	mock.ExpectQuery(`AND custom_domain IS NULL LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(snapColumns))

	if _, _, err := s.Get(context.Background(), testRef, "shop.example.com"); !errors.Is(err, ErrMiss) {
		t.Fatalf("err = %v, want ErrMiss", err)
	}
}

func TestGet_EmptyDomainSkipsDomainTier(t *testing.T) {
	s, mock := newMockStore(t)

	// Only the NULL-domain key is tried.
	mock.ExpectQuery(`AND custom_domain IS NULL LIMIT 1`).
		WithArgs("website_page", uint64(42)).
		WillReturnRows(snapRow(3, testRef, nil, "<html>default</html>"))

	_, tier, err := s.Get(context.Background(), testRef, "")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if tier != TierDefault {
		t.Errorf("tier = %q, want %q", tier, TierDefault)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
