// cmd/edge/main.go
//
// Storefront edge – HTTP entry point.
//
// Request life-cycle
// ------------------
//
//  1. Load env vars (jail-wide file → conf/.env fallback).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Load config (koanf overlays), resolve vault: secret references.
//
//  4. Open the control-plane DB and log eligible-domain count.
//
//  5. Build the verified-domain cache, snapshot store, resolver, generator,
//     and the lifecycle poller goroutine.
//
//  6. Expose Prometheus /metrics and a /healthz DB ping.
//
//  7. Mount the serving pipeline behind request-info, security-header, and
//     ForceHTTPS middleware, then run the timeout-tuned server until
//     SIGINT/SIGTERM drains it.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/schalder/ecombuildr-edge/internal/config"
	"github.com/schalder/ecombuildr-edge/internal/crawler"
	"github.com/schalder/ecombuildr-edge/internal/database"
	"github.com/schalder/ecombuildr-edge/internal/domain"
	"github.com/schalder/ecombuildr-edge/internal/generator"
	"github.com/schalder/ecombuildr-edge/internal/lifecycle"
	"github.com/schalder/ecombuildr-edge/internal/logger"
	"github.com/schalder/ecombuildr-edge/internal/middleware"
	"github.com/schalder/ecombuildr-edge/internal/provider"
	"github.com/schalder/ecombuildr-edge/internal/requestinfo"
	"github.com/schalder/ecombuildr-edge/internal/resolver"
	"github.com/schalder/ecombuildr-edge/internal/serve"
	"github.com/schalder/ecombuildr-edge/internal/server"
	"github.com/schalder/ecombuildr-edge/internal/snapshot"
	"github.com/schalder/ecombuildr-edge/internal/vault"
)

const serverEnvPath = "/usr/local/etc/ecombuildr-edge/global.env"

// loadEnv prefers the jail-wide env file; on dev it falls back to .env.
func loadEnv() {
	if _, err := os.Stat(serverEnvPath); err == nil {
		_ = godotenv.Load(serverEnvPath)
		return
	}
	_ = godotenv.Load()
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func init() { loadEnv() }

func main() {
	rootDir, _ := os.Getwd()
	logOut, err := logger.New(rootDir, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer func() { _ = logOut.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	//
	// ── 1.  Config + secrets ───────────────────────────────────────────
	//
	cfg, err := config.Load()
	if err != nil {
		logOut.Fatalf("load config: %v", err)
	}

	var vaultCli *vault.Client
	if os.Getenv("VAULT_ADDR") != "" {
		if vaultCli, err = vault.New(ctx); err != nil {
			logOut.Fatalf("vault client: %v", err)
		}
	}
	if err := cfg.ResolveSecrets(ctx, vaultCli); err != nil {
		logOut.Fatalf("resolve secrets: %v", err)
	}

	//
	// ── 2.  Control-plane DB connect ───────────────────────────────────
	//
	logOut.Info("connecting to control-plane DB …")
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		logOut.Fatalf("connect control-plane DB: %v", err)
	}
	defer db.Close()
	logOut.Info("control-plane DB online")

	// Log eligible-domain count as an early sanity check.
	var eligible int
	_ = db.Get(&eligible, `
	    SELECT COUNT(*) FROM custom_domains
	    WHERE is_verified = 1 AND dns_configured = 1
	      AND ssl_status = 'issued' AND deactivated_at IS NULL`)
	logOut.Infof("%d eligible domain(s) found", eligible)

	//
	// ── 3.  Geo enrichment (optional) ──────────────────────────────────
	//
	if err := requestinfo.InitGeo(cfg.GeoIP.DBPath); err != nil {
		logOut.Warnw("geoip disabled", "path", cfg.GeoIP.DBPath, "err", err)
	}

	//
	// ── 4.  Pipeline collaborators ─────────────────────────────────────
	//
	domains := domain.NewCache(db, cfg.Cache.RecordTTL, cfg.Cache.MaxEntries)
	defer domains.Close()

	snaps := snapshot.NewStore(db)
	gen := generator.New(snaps, cfg.Renderer.Endpoint, cfg.Renderer.Timeout)
	res := resolver.New(db)
	classifier := crawler.New(cfg.Crawler.ExtraTokens...)

	prov := provider.New(cfg.Provider.Endpoint, cfg.Provider.APIToken, cfg.Provider.Timeout)
	dns := lifecycle.NewDNSChecker(net.DefaultResolver, cfg.DNS.PlatformHosts, cfg.DNS.Timeout)
	manager := lifecycle.NewManager(db, prov, dns, cfg.Lifecycle.PollInterval)
	go manager.Run(ctx)

	svc := serve.New(classifier, domains, res, snaps, gen, manager,
		cfg.Shell.Title, cfg.Shell.BundleURL)

	//
	// ── 5.  Router: metrics, health, pipeline ──────────────────────────
	//
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var root http.Handler = svc.Routes()
	root = requestinfo.Enrich(root)
	root = middleware.Security(root)
	if cfg.HTTP.ForceHTTPS {
		root = middleware.ForceHTTPS(domains, root)
	}
	r.Mount("/", root)

	//
	// ── 6.  Serve until signalled ──────────────────────────────────────
	//
	srv := server.New(cfg.HTTP.ListenAddr, r)
	go func() {
		logOut.Infof("listening on %s", cfg.HTTP.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logOut.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logOut.Info("shutting down …")

	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logOut.Errorw("shutdown incomplete", "err", err)
	}
	zap.L().Info("bye")
}
