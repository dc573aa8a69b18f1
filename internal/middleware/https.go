// Package middleware holds small, composable HTTP wrappers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/schalder/ecombuildr-edge/internal/domain"
)

// ForceHTTPS wraps h.  If the request arrived over plain HTTP (directly or
// per X-Forwarded-Proto from the terminating proxy), the host is not
// "localhost", and the registry confirms an eligible domain, the wrapper
// issues a 308 Permanent Redirect to the HTTPS version of the same URL.
// Otherwise it calls the next handler unchanged.  The hostname comes from
// X-Forwarded-Host when the upstream proxy sets it, matching what the
// serving pipeline resolves against.
func ForceHTTPS(cache *domain.Cache, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := requestHost(r)
		if isHTTPS(r) || host == "localhost" {
			h.ServeHTTP(w, r)
			return
		}

		// Only redirect if the host exists in the registry; unknown hosts
		// keep the normal flow (likely 404 later).
		if _, err := cache.Resolve(r.Context(), host); err == nil {
			target := "https://" + host + r.URL.RequestURI()
			http.Redirect(w, r, target, http.StatusPermanentRedirect)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// requestHost prefers the hostname set by the terminating proxy, taking the
// first entry of a comma-separated X-Forwarded-Host list.
func requestHost(r *http.Request) string {
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host, _, _ := strings.Cut(fh, ",")
		return stripPort(strings.TrimSpace(host))
	}
	return stripPort(r.Host)
}

// stripPort removes the :port suffix from Host when present.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}
