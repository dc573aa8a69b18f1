// internal/middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/schalder/ecombuildr-edge/internal/domain"
)

func TestSecurity_HeadersReachTheWire(t *testing.T) {
	// The handler commits the response with an explicit WriteHeader, which
	// snapshots the header map; anything the middleware sets afterwards would
	// be lost.  Asserting over a real server catches that.
	h := Security(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<h1>404</h1>"))
	}))
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	for header, want := range map[string]string{
		"Strict-Transport-Security": "max-age=63072000; includeSubDomains; preload",
		"X-Frame-Options":           "SAMEORIGIN",
		"X-Content-Type-Options":    "nosniff",
		"Referrer-Policy":           "strict-origin-when-cross-origin",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Errorf("%s = %q on the wire, want %q", header, got, want)
		}
	}
}

func TestSecurity_HandlerValueWins(t *testing.T) {
	h := Security(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.WriteHeader(http.StatusOK)
	}))
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, handler value must win", got)
	}
}

func newTestCache(t *testing.T) (*domain.Cache, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	db := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() { _ = db.Close() })

	c := domain.NewCache(db, time.Minute, 16)
	t.Cleanup(c.Close)
	return c, mock
}

func TestForceHTTPS_RedirectsKnownDomain(t *testing.T) {
	cache, mock := newTestCache(t)

	now := time.Now()
	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? AND is_verified = 1`).
		WithArgs("shop.example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "domain", "store_id", "status", "is_verified", "dns_configured",
			"ssl_status", "last_error", "last_checked_at", "deactivated_at",
			"created_at", "updated_at",
		}).AddRow(1, "shop.example.com", 7, domain.StateVerified, true, true,
			domain.SSLIssued, nil, nil, nil, now, now))

	h := ForceHTTPS(cache, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("redirected request must not reach the handler")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://shop.example.com/sale?x=1", nil))

	if w.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want 308", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://shop.example.com/sale?x=1" {
		t.Errorf("Location = %q", loc)
	}
}

func TestForceHTTPS_UnknownDomainPassesThrough(t *testing.T) {
	cache, mock := newTestCache(t)

	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? AND is_verified = 1`).
		WithArgs("stranger.example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	called := false
	h := ForceHTTPS(cache, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://stranger.example.com/", nil))

	if !called {
		t.Error("unknown domains keep the normal flow")
	}
}

func TestForceHTTPS_ForwardedHostGatesRedirect(t *testing.T) {
	cache, mock := newTestCache(t)

	// Behind the platform proxy the Host header is proxy-internal; the tenant
	// hostname only arrives via X-Forwarded-Host and must drive both the
	// registry check and the redirect target.
	now := time.Now()
	mock.ExpectQuery(`FROM custom_domains WHERE domain = \? AND is_verified = 1`).
		WithArgs("shop.example.com").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "domain", "store_id", "status", "is_verified", "dns_configured",
			"ssl_status", "last_error", "last_checked_at", "deactivated_at",
			"created_at", "updated_at",
		}).AddRow(1, "shop.example.com", 7, domain.StateVerified, true, true,
			domain.SSLIssued, nil, nil, nil, now, now))

	h := ForceHTTPS(cache, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("redirected request must not reach the handler")
	}))

	r := httptest.NewRequest(http.MethodGet, "http://edge.internal:8080/sale", nil)
	r.Header.Set("X-Forwarded-Host", "shop.example.com:443, proxy.internal")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != http.StatusPermanentRedirect {
		t.Fatalf("status = %d, want 308", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://shop.example.com/sale" {
		t.Errorf("Location = %q", loc)
	}
}

func TestForceHTTPS_ForwardedProtoSkips(t *testing.T) {
	cache, _ := newTestCache(t)

	called := false
	h := ForceHTTPS(cache, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "http://shop.example.com/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !called {
		t.Error("already-HTTPS requests must pass through untouched")
	}
}
