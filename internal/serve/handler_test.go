// internal/serve/handler_test.go
//
// End-to-end tests for the serving pipeline: sqlmock behind the registry,
// resolver, and snapshot store; an httptest stub behind the renderer.
//
// Run: go test ./internal/serve -v
package serve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/schalder/ecombuildr-edge/internal/crawler"
	"github.com/schalder/ecombuildr-edge/internal/domain"
	"github.com/schalder/ecombuildr-edge/internal/generator"
	"github.com/schalder/ecombuildr-edge/internal/lifecycle"
	"github.com/schalder/ecombuildr-edge/internal/provider"
	"github.com/schalder/ecombuildr-edge/internal/resolver"
	"github.com/schalder/ecombuildr-edge/internal/snapshot"
)

const (
	botUA   = "Twitterbot/1.0"
	humanUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
)

// stubProvider satisfies lifecycle.Provider; the content pipeline never
// touches it but the admin routes need a Manager.
type stubProvider struct{ registerErr error }

func (s stubProvider) Register(context.Context, string) error   { return s.registerErr }
func (s stubProvider) Deregister(context.Context, string) error { return nil }
func (s stubProvider) GetStatus(context.Context, string) (*provider.Status, error) {
	return &provider.Status{}, nil
}

func newTestService(t *testing.T, render http.HandlerFunc) (*Service, sqlmock.Sqlmock) {
	t.Helper()

	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() { _ = db.Close() })

	if render == nil {
		render = func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	}
	rs := httptest.NewServer(render)
	t.Cleanup(rs.Close)

	cache := domain.NewCache(db, time.Minute, 16)
	t.Cleanup(cache.Close)

	snaps := snapshot.NewStore(db)
	gen := generator.New(snaps, rs.URL, 5*time.Second)
	dns := lifecycle.NewDNSChecker(nil, []string{"edge.ecombuildr.net"}, time.Second)
	mgr := lifecycle.NewManager(db, stubProvider{}, dns, time.Minute)

	svc := New(crawler.New(), cache, resolver.New(db), snaps, gen, mgr,
		"Storefront", "/assets/app.js")
	return svc, mock
}

func doRequest(svc *Service, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	svc.Routes().ServeHTTP(w, r)
	return w
}

//
// Row builders
//

var domainColumns = []string{
	"id", "domain", "store_id", "status", "is_verified", "dns_configured",
	"ssl_status", "last_error", "last_checked_at", "deactivated_at",
	"created_at", "updated_at",
}

func eligibleDomainRow(host string, storeID uint64) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(domainColumns).
		AddRow(1, host, storeID, domain.StateVerified, true, true,
			domain.SSLIssued, nil, nil, nil, now, now)
}

var connColumns = []string{
	"id", "domain", "path_pattern", "match_type", "content_type", "content_id",
	"created_at",
}

var snapColumns = []string{
	"id", "content_type", "content_id", "custom_domain", "html", "generated_at",
}

func websiteRows(id, storeID uint64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "store_id", "status", "is_active"}).
		AddRow(id, storeID, "published", true)
}

func pageRows(id, websiteID uint64, slug string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "website_id", "slug", "is_homepage", "is_published", "updated_at"}).
		AddRow(id, websiteID, slug, slug == "", true, time.Now())
}

// expectDefaultResolution queues the query sequence for a connection-less
// homepage hit on shop.example.com / store 7 / website 40 / page 101.
func expectDefaultResolution(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? AND is_verified = 1`).
		WithArgs("shop.example.com").
		WillReturnRows(eligibleDomainRow("shop.example.com", 7))
	mock.ExpectQuery(`FROM domain_connections WHERE domain = \?`).
		WithArgs("shop.example.com").
		WillReturnRows(sqlmock.NewRows(connColumns))
	mock.ExpectQuery(`FROM websites WHERE store_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(websiteRows(40, 7))
	mock.ExpectQuery(`FROM website_pages WHERE website_id = \? AND is_homepage = 1`).
		WithArgs(uint64(40)).
		WillReturnRows(pageRows(101, 40, ""))
}

//
// Tests
//

func TestHandleContent_HumanGetsShell(t *testing.T) {
	svc, mock := newTestService(t, nil)

	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
	r.Header.Set("User-Agent", humanUA)
	w := doRequest(svc, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get(headerRenderSource); got != sourceShell {
		t.Errorf("%s = %q, want %q", headerRenderSource, got, sourceShell)
	}
	if w.Header().Get(headerRequestID) == "" {
		t.Error("missing request id header")
	}
	if !strings.Contains(w.Body.String(), `<div id="app">`) {
		t.Error("shell document missing application mount point")
	}
	// The shell path never touches the database.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleContent_AdminPrefixBypassesResolution(t *testing.T) {
	svc, mock := newTestService(t, nil)

	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/dashboard/settings", nil)
	r.Header.Set("User-Agent", botUA) // even fetchers get the shell here
	w := doRequest(svc, r)

	if got := w.Header().Get(headerRenderSource); got != sourceShell {
		t.Errorf("%s = %q, want %q", headerRenderSource, got, sourceShell)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleContent_BotSnapshotHit(t *testing.T) {
	svc, mock := newTestService(t, nil)

	host := "shop.example.com"
	expectDefaultResolution(mock)
	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WithArgs("website_page", uint64(101), host).
		WillReturnRows(sqlmock.NewRows(snapColumns).
			AddRow(1, "website_page", 101, &host, "<html>prerendered</html>", time.Now()))

	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
	r.Header.Set("User-Agent", botUA)
	w := doRequest(svc, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(headerRenderSource); got != sourceSnapshot {
		t.Errorf("%s = %q, want %q", headerRenderSource, got, sourceSnapshot)
	}
	if got := w.Header().Get(headerSnapshotTier); got != snapshot.TierDomain {
		t.Errorf("%s = %q, want %q", headerSnapshotTier, got, snapshot.TierDomain)
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "s-maxage=3600") {
		t.Errorf("Cache-Control = %q, want shared-cache lifetime", cc)
	}
	if w.Body.String() != "<html>prerendered</html>" {
		t.Errorf("body = %q", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleContent_UnknownDomain404(t *testing.T) {
	svc, mock := newTestService(t, nil)

	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? AND is_verified = 1`).
		WithArgs("pending.example.com").
		WillReturnRows(sqlmock.NewRows(domainColumns))

	r := httptest.NewRequest(http.MethodGet, "http://pending.example.com/", nil)
	r.Header.Set("User-Agent", botUA)
	w := doRequest(svc, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want HTML error document", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if !strings.Contains(w.Body.String(), "404") {
		t.Error("404 body must be a well-formed document")
	}
}

func TestHandleContent_MissGeneratesThenServes(t *testing.T) {
	svc, mock := newTestService(t, nil) // renderer answers 200

	host := "shop.example.com"
	expectDefaultResolution(mock)
	// First lookup: both tiers miss.
	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(snapColumns))
	mock.ExpectQuery(`AND custom_domain IS NULL LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(snapColumns))
	// Re-read after the render call: the domain tier now hits.
	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(snapColumns).
			AddRow(2, "website_page", 101, &host, "<html>generated now</html>", time.Now()))

	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
	r.Header.Set("User-Agent", botUA)
	w := doRequest(svc, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(headerRenderSource); got != sourceGenerate {
		t.Errorf("%s = %q, want %q", headerRenderSource, got, sourceGenerate)
	}
	if cc := w.Header().Get("Cache-Control"); strings.Contains(cc, "s-maxage") {
		t.Errorf("Cache-Control = %q, freshly generated pages get the short lifetime", cc)
	}
	if w.Body.String() != "<html>generated now</html>" {
		t.Errorf("body = %q", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleContent_RendererFailure503(t *testing.T) {
	svc, mock := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "render crashed", http.StatusInternalServerError)
	})

	expectDefaultResolution(mock)
	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(snapColumns))
	mock.ExpectQuery(`AND custom_domain IS NULL LIMIT 1`).
		WillReturnRows(sqlmock.NewRows(snapColumns))

	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
	r.Header.Set("User-Agent", botUA)
	w := doRequest(svc, r)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if w.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-store" {
		t.Errorf("Cache-Control = %q, errors must not be cached", cc)
	}
}

func TestHandleContent_PathQueryOverride(t *testing.T) {
	svc, mock := newTestService(t, nil)

	host := "shop.example.com"
	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? AND is_verified = 1`).
		WithArgs(host).
		WillReturnRows(eligibleDomainRow(host, 7))
	mock.ExpectQuery(`FROM domain_connections WHERE domain = \?`).
		WithArgs(host).
		WillReturnRows(sqlmock.NewRows(connColumns))
	mock.ExpectQuery(`FROM websites WHERE store_id = \?`).
		WithArgs(uint64(7)).
		WillReturnRows(websiteRows(40, 7))
	// The slug must come from ?path=, not the URL path.
	mock.ExpectQuery(`FROM website_pages WHERE website_id = \? AND slug = \?`).
		WithArgs(uint64(40), "about").
		WillReturnRows(pageRows(102, 40, "about"))
	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WithArgs("website_page", uint64(102), host).
		WillReturnRows(sqlmock.NewRows(snapColumns).
			AddRow(3, "website_page", 102, &host, "<html>about</html>", time.Now()))

	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/?path=/about", nil)
	r.Header.Set("User-Agent", botUA)
	w := doRequest(svc, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestHandleContent_ForwardedHostWins(t *testing.T) {
	svc, mock := newTestService(t, nil)

	host := "shop.example.com"
	expectDefaultResolution(mock)
	mock.ExpectQuery(`AND custom_domain = \? LIMIT 1`).
		WithArgs("website_page", uint64(101), host).
		WillReturnRows(sqlmock.NewRows(snapColumns).
			AddRow(1, "website_page", 101, &host, "<html>prerendered</html>", time.Now()))

	// The proxy-internal Host is ignored in favour of X-Forwarded-Host,
	// including port stripping and list handling.
	r := httptest.NewRequest(http.MethodGet, "http://edge.internal:8080/", nil)
	r.Header.Set("User-Agent", botUA)
	r.Header.Set("X-Forwarded-Host", "shop.example.com:443, proxy.internal")
	w := doRequest(svc, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestIsAdminPath(t *testing.T) {
	cases := map[string]bool{
		"/dashboard":      true,
		"/admin/users":    true,
		"/api/domains":    true,
		"/administrivia":  false,
		"/builder":        true,
		"/edit/page/3":    true,
		"/":               false,
		"/products/admin": false,
	}
	for path, want := range cases {
		if got := isAdminPath(path); got != want {
			t.Errorf("isAdminPath(%q) = %v, want %v", path, got, want)
		}
	}
}
