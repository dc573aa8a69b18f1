// internal/requestinfo/requestinfo.go
//
// Lightweight types and helpers that collect per-request metadata
// (user-agent fingerprint, IP + geolocation, URL, and timestamp).  These
// structs are inert.  They contain no pointers to database handles or large
// buffers, so they are safe to log or JSON-encode.
package requestinfo

import (
	"context"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/schalder/ecombuildr-edge/internal/crawler"
)

// Geo holds IP-based geolocation hints.  Best-effort; fields may be empty
// when the database has no match or geo enrichment is disabled.
type Geo struct {
	IP         net.IP // original client address (not the X-Forwarded-For chain)
	CountryISO string // "US", "CA", "FR", …
	City       string // "Chicago", "Paris", …
}

// RequestInfo is stored in the request context by Enrich and read by the
// serving pipeline and access logging.
type RequestInfo struct {
	UA        crawler.Info
	Geo       Geo
	URL       *url.URL // pointer copy, safe to dereference read-only
	Timestamp time.Time
}

//
// Package-level state
//

var (
	geoMu     sync.RWMutex
	geoReader *geoip2.Reader
)

// InitGeo opens the GeoLite2-City database at startup.  A missing or empty
// path disables geo enrichment rather than failing the boot; the edge can
// serve without it.
func InitGeo(dbPath string) error {
	if dbPath == "" {
		return nil
	}
	r, err := geoip2.Open(dbPath)
	if err != nil {
		return err
	}
	geoMu.Lock()
	geoReader = r
	geoMu.Unlock()
	return nil
}

type ctxKey struct{} // unexported, collision-proof

// FromContext returns the pointer previously stored by Enrich, or nil when
// the middleware has not run.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

//
// Internal helpers
//

// primaryLang extracts the first language subtag before any ";q=" rule.
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	tag, _, _ := strings.Cut(al, ",")
	tag = strings.TrimSpace(tag)
	if i := strings.Index(tag, ";"); i != -1 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}

// lookupGeo returns best-effort Geo data using the shared reader.
func lookupGeo(ip net.IP) Geo {
	geoMu.RLock()
	r := geoReader
	geoMu.RUnlock()

	if r == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := r.City(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{
		IP:         ip,
		CountryISO: rec.Country.IsoCode,
		City:       rec.City.Names["en"],
	}
}
