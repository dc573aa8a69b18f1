// internal/serve/handler.go
//
// The serving pipeline.
//
/*
Context
--------
Every tenant-facing request flows through one handler:

	classify UA → admin-prefix bypass → domain registry → content
	resolution → snapshot lookup → on-demand generation → respond

Human browsers get the lightweight application shell immediately; the
client-side storefront takes over from there.  Automated fetchers get
pre-rendered HTML: the snapshot cache first, the external renderer on a
miss.  Admin path prefixes (dashboard, admin, builder, edit, api) belong to
the operator's control surface, never to tenant storefronts, and receive
the shell regardless of domain status.

Every response carries `X-Render-Source` naming the resolution path
(snapshot-hit, generated, fallback-shell) and an `X-Request-Id` for log
correlation.  Outward-facing errors are always well-formed HTML.

Recognized request overrides: `X-Forwarded-Host` for the hostname, a
`path` query parameter for the effective path (upstream rewrite rules),
and `preview=1` to lift the published-only restriction.
*/
package serve

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/schalder/ecombuildr-edge/internal/content"
	"github.com/schalder/ecombuildr-edge/internal/crawler"
	"github.com/schalder/ecombuildr-edge/internal/domain"
	"github.com/schalder/ecombuildr-edge/internal/generator"
	"github.com/schalder/ecombuildr-edge/internal/lifecycle"
	"github.com/schalder/ecombuildr-edge/internal/metrics"
	"github.com/schalder/ecombuildr-edge/internal/requestinfo"
	"github.com/schalder/ecombuildr-edge/internal/resolver"
	"github.com/schalder/ecombuildr-edge/internal/shell"
	"github.com/schalder/ecombuildr-edge/internal/snapshot"
)

// Response headers and render sources.
const (
	headerRenderSource = "X-Render-Source"
	headerRequestID    = "X-Request-Id"
	headerSnapshotTier = "X-Snapshot-Tier"

	sourceSnapshot = "snapshot-hit"
	sourceGenerate = "generated"
	sourceShell    = "fallback-shell"
)

// Cache-Control values per outcome.  Confirmed-static snapshots get the
// longer shared-cache lifetime.
const (
	ccDefault  = "public, max-age=300"
	ccSnapshot = "public, max-age=300, s-maxage=3600"
	ccNotFound = "public, max-age=60"
	ccError    = "no-store"
)

// adminPrefixes are operator control-surface routes excluded from tenant
// resolution entirely.
var adminPrefixes = []string{"/dashboard", "/admin", "/builder", "/edit", "/api"}

// Service wires the pipeline's collaborators.  Construct with New.
type Service struct {
	classifier *crawler.Classifier
	domains    *domain.Cache
	resolver   *resolver.Resolver
	snaps      *snapshot.Store
	gen        *generator.Generator
	manager    *lifecycle.Manager

	shellTitle string
	bundleURL  string
}

// New constructs the Service.  bundleURL may be empty (shell without a
// client script, useful in tests).
func New(
	classifier *crawler.Classifier,
	domains *domain.Cache,
	res *resolver.Resolver,
	snaps *snapshot.Store,
	gen *generator.Generator,
	manager *lifecycle.Manager,
	shellTitle, bundleURL string,
) *Service {
	return &Service{
		classifier: classifier,
		domains:    domains,
		resolver:   res,
		snaps:      snaps,
		gen:        gen,
		manager:    manager,
		shellTitle: shellTitle,
		bundleURL:  bundleURL,
	}
}

// Routes returns the chi router for the whole edge surface: the domain
// admin API plus the catch-all content pipeline.
func (s *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/api/domains", s.domainRoutes)
	r.Get("/*", s.handleContent)
	r.Head("/*", s.handleContent)
	return r
}

//
// Pipeline
//

func (s *Service) handleContent(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set(headerRequestID, reqID)

	host := requestHost(r)
	path := resolver.NormalizePath(effectivePath(r))
	preview := r.URL.Query().Get("preview") == "1"
	log := zap.S().With("req_id", reqID, "host", host, "path", path)
	if info := requestinfo.FromContext(r.Context()); info != nil {
		log = log.With(
			"device", info.UA.Device,
			"country", info.Geo.CountryISO,
			"lang", requestinfo.LangFromContext(r.Context()),
		)
	}

	// Operator surfaces and human browsers boot the client application.
	if isAdminPath(path) || !s.classifier.Classify(r.UserAgent()) {
		s.writeShell(w)
		return
	}

	ctx := r.Context()

	rec, err := s.domains.Resolve(ctx, host)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debugw("domain not eligible")
			s.writeNotFound(w)
			return
		}
		log.Errorw("domain resolution error", "err", err)
		s.writeError(w)
		return
	}

	ref, err := s.resolver.Resolve(ctx, rec, path, preview)
	if err != nil {
		if errors.Is(err, resolver.ErrNoMatch) || errors.Is(err, content.ErrNotFound) {
			log.Debugw("no content match")
			s.writeNotFound(w)
			return
		}
		log.Errorw("content resolution error", "err", err)
		s.writeError(w)
		return
	}

	snap, tier, err := s.snaps.Get(ctx, ref, host)
	if err == nil {
		w.Header().Set(headerSnapshotTier, tier)
		s.writeHTML(w, http.StatusOK, snap.HTML, sourceSnapshot, ccSnapshot)
		return
	}
	if !errors.Is(err, snapshot.ErrMiss) {
		log.Errorw("snapshot lookup error", "ref", ref.String(), "err", err)
		s.writeError(w)
		return
	}

	snap, err = s.gen.Ensure(ctx, ref, host)
	if err != nil {
		if errors.Is(err, generator.ErrGenerationFailed) {
			log.Warnw("generation failed", "ref", ref.String(), "err", err)
			s.writeUnavailable(w)
			return
		}
		if ctx.Err() != nil {
			return // client went away; nothing useful left to write
		}
		log.Errorw("generation error", "ref", ref.String(), "err", err)
		s.writeError(w)
		return
	}
	s.writeHTML(w, http.StatusOK, snap.HTML, sourceGenerate, ccDefault)
}

//
// Request helpers
//

// requestHost prefers the forwarded host set by the upstream proxy.
func requestHost(r *http.Request) string {
	if fh := r.Header.Get("X-Forwarded-Host"); fh != "" {
		host, _, _ := strings.Cut(fh, ",")
		return stripPort(strings.TrimSpace(host))
	}
	return stripPort(r.Host)
}

// effectivePath honours the `path` query override used by upstream rewrite
// rules; otherwise the URL path.
func effectivePath(r *http.Request) string {
	if p := r.URL.Query().Get("path"); p != "" {
		return p
	}
	return r.URL.Path
}

// isAdminPath matches operator prefixes on a segment boundary:
// "/admin" and "/admin/x" bypass, "/administrivia" does not.
func isAdminPath(path string) bool {
	for _, p := range adminPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// stripPort removes any ":port" suffix from a Host header value.
func stripPort(h string) string {
	if i := strings.IndexByte(h, ':'); i != -1 {
		return h[:i]
	}
	return h
}

//
// Response writers
//

func (s *Service) writeShell(w http.ResponseWriter) {
	s.writeHTML(w, http.StatusOK, shell.App(s.shellTitle, s.bundleURL), sourceShell, ccDefault)
}

func (s *Service) writeNotFound(w http.ResponseWriter) {
	metrics.ServeTotal.WithLabelValues("not-found").Inc()
	writeDoc(w, http.StatusNotFound, shell.NotFound(), ccNotFound)
}

func (s *Service) writeUnavailable(w http.ResponseWriter) {
	metrics.ServeTotal.WithLabelValues("unavailable").Inc()
	w.Header().Set("Retry-After", "30")
	writeDoc(w, http.StatusServiceUnavailable, shell.Unavailable(), ccError)
}

func (s *Service) writeError(w http.ResponseWriter) {
	metrics.ServeTotal.WithLabelValues("error").Inc()
	writeDoc(w, http.StatusInternalServerError, shell.Error(), ccError)
}

func (s *Service) writeHTML(w http.ResponseWriter, status int, html, source, cacheControl string) {
	metrics.ServeTotal.WithLabelValues(source).Inc()
	w.Header().Set(headerRenderSource, source)
	writeDoc(w, status, html, cacheControl)
}

func writeDoc(w http.ResponseWriter, status int, html, cacheControl string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(html))
}
