// internal/middleware/security.go
//
// Security-header middleware.
//
// Injects baseline headers on every response:
//
//   - Strict-Transport-Security  –  forces HTTPS (2 years + preload)
//   - X-Frame-Options            –  click-jacking defence
//   - X-Content-Type-Options     –  MIME-sniffing defence
//   - Referrer-Policy            –  drops path/query from Referer
//
// Notes
// -----
//   - Headers are set *before* next.ServeHTTP: net/http snapshots the header
//     map when the handler calls WriteHeader, so anything added afterwards
//     never reaches the wire.  Handlers that need a different value simply
//     overwrite the default.
//   - No Content-Security-Policy here: tenant snapshots carry arbitrary
//     inline scripts, styles, and third-party pixels, so a platform-wide
//     CSP would break storefronts.
package middleware

import "net/http"

// Security sets security headers for every response.
func Security(next http.Handler) http.Handler {
	const (
		hsts  = "max-age=63072000; includeSubDomains; preload"
		xfo   = "SAMEORIGIN"
		nosn  = "nosniff"
		refer = "strict-origin-when-cross-origin"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", hsts)
		h.Set("X-Frame-Options", xfo)
		h.Set("X-Content-Type-Options", nosn)
		h.Set("Referrer-Policy", refer)

		next.ServeHTTP(w, r)
	})
}
