// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
This handler sits high in the chain—after logging / metrics but before the
serving pipeline.  For every request it:

 1. Parses the User-Agent header and Accept-Language list.
 2. Extracts the left-most public client IP from X-Forwarded-For or
    X-Real-IP, falling back to `r.RemoteAddr`.
 3. Performs a GeoLite2 lookup when enabled.
 4. Stores a `*RequestInfo` value in `request.Context` under an unexported
    key, so downstream handlers can access UA, Geo, URL, and timestamp
    attributes without reparsing.

Notes
-----
  - All look-ups are read-only and pool-based, so the middleware is safe
    under heavy concurrency.
*/
package requestinfo

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/schalder/ecombuildr-edge/internal/crawler"
)

// Lang is attached alongside the UA fingerprint; kept off crawler.Info so
// the parser wrapper stays header-agnostic.
type langKey struct{}

// LangFromContext returns the primary Accept-Language subtag, or "".
func LangFromContext(ctx context.Context) string {
	v, _ := ctx.Value(langKey{}).(string)
	return v
}

// Enrich wraps an http.Handler, attaches *RequestInfo, and forwards.
func Enrich(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		info := &RequestInfo{
			UA:        crawler.Parse(r.UserAgent()),
			Geo:       lookupGeo(ip),
			URL:       r.URL, // pointer copy; safe for read-only access
			Timestamp: time.Now().UTC(),
		}

		zap.S().Debugw("request info",
			"ip", info.Geo.IP,
			"country", info.Geo.CountryISO,
			"browser", info.UA.Browser,
			"device", info.UA.Device,
			"bot", info.UA.IsBot,
			"path", r.URL.Path,
			"raw_query", r.URL.RawQuery,
		)

		ctx := context.WithValue(r.Context(), ctxKey{}, info)
		ctx = context.WithValue(ctx, langKey{},
			primaryLang(r.Header.Get("Accept-Language")))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP extracts the left-most address from X-Forwarded-For or X-Real-IP,
// falling back to r.RemoteAddr ("ip:port").
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip
			}
		}
	}
	if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
		if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return nil
}
