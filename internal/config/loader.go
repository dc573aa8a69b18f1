// internal/config/loader.go
//
// Configuration loader.
//
/*
Context
--------
`Load()` builds one immutable `Config` struct from three layers (highest
precedence last):

 1. Optional `conf/.env` — dotenv values.
 2. `conf/global.yaml`.
 3. Environment variables prefixed `EDGE_`, where `__` maps to “.”
    (e.g., `EDGE_HTTP__LISTEN_ADDR → http.listen_addr`).

After merging, the tree is unmarshalled into strongly-typed structs,
validated, defaulted, enriched with the runtime root path, and cached in an
`atomic.Pointer` for lock-free reads.  `Reload()` simply calls `Load()`
again and swaps the pointer.

Secret references (`vault:<path>#<key>`) are left in place by Load; callers
resolve them with `ResolveSecrets` once a Vault client exists.

Notes
-----
  - `rootDir()` climbs the cwd tree until it finds `conf/global.yaml`, so
    `go run ./cmd/edge` works from any sub-directory.
*/
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	koanf "github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/schalder/ecombuildr-edge/internal/vault"
)

var current atomic.Pointer[Config]

// Defaults applied when YAML and env leave a tunable unset.
const (
	defaultRendererTimeout = 20 * time.Second
	defaultProviderTimeout = 10 * time.Second
	defaultDNSTimeout      = 5 * time.Second
	defaultPollInterval    = time.Minute
	defaultRecordTTL       = 30 * time.Second
	defaultMaxEntries      = 1024
)

/*──────────────────────────── root discovery ───────────────────────────────*/

// rootDir resolves EDGE_ROOT or climbs directories until conf/global.yaml
// is found.  Falls back to executable heuristic for production layout.
func rootDir() string {
	if r := os.Getenv("EDGE_ROOT"); r != "" {
		return r
	}

	wd, _ := os.Getwd()
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "conf", "global.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir { // reached filesystem root
			break
		}
		dir = parent
	}

	exe, _ := os.Executable()
	if filepath.Base(filepath.Dir(exe)) == "bin" {
		return filepath.Dir(filepath.Dir(exe))
	}
	return wd
}

/*─────────────────────────────── loader ───────────────────────────────────*/

// Load reads .env, YAML, env overrides, validates, and caches Config.
func Load() (*Config, error) {
	root := rootDir()
	zap.S().Debugw("config root resolved", "root", root)

	// .env (optional, no error if missing)
	_ = godotenv.Load(filepath.Join(root, "conf", ".env"))

	k := koanf.New(".")

	yamlPath := filepath.Join(root, "conf", "global.yaml")
	if err := k.Load(file.Provider(yamlPath), yaml.Parser()); err != nil {
		zap.S().Errorw("config yaml load failed", "file", yamlPath, "err", err)
		return nil, err
	}

	// Env overrides: EDGE_HTTP__LISTEN_ADDR → http.listen_addr
	if err := k.Load(env.Provider("EDGE_", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "__", "."))
	}), nil); err != nil {
		zap.S().Errorw("config env overlay failed", "err", err)
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		zap.S().Errorw("config unmarshal failed", "err", err)
		return nil, err
	}

	cfg.Paths.Root = root
	applyDefaults(&cfg)
	if err := validateStruct(&cfg); err != nil {
		zap.S().Errorw("config validation failed", "err", err)
		return nil, err
	}

	current.Store(&cfg)
	zap.S().Infow("config loaded",
		"listen_addr", cfg.HTTP.ListenAddr,
		"force_https", cfg.HTTP.ForceHTTPS,
		"renderer", cfg.Renderer.Endpoint,
		"provider", cfg.Provider.Endpoint,
		"root", cfg.Paths.Root,
	)
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.Renderer.Timeout <= 0 {
		c.Renderer.Timeout = defaultRendererTimeout
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = defaultProviderTimeout
	}
	if c.DNS.Timeout <= 0 {
		c.DNS.Timeout = defaultDNSTimeout
	}
	if c.Lifecycle.PollInterval <= 0 {
		c.Lifecycle.PollInterval = defaultPollInterval
	}
	if c.Cache.RecordTTL <= 0 {
		c.Cache.RecordTTL = defaultRecordTTL
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = defaultMaxEntries
	}
	if c.Shell.Title == "" {
		c.Shell.Title = "Storefront"
	}
}

/*──────────────────────────── secret refs ─────────────────────────────────*/

const vaultPrefix = "vault:"

// ResolveSecrets replaces every `vault:<path>#<key>` reference in the secret
// fields with the value fetched from Vault.  The DSN gains the database
// password through its `%s` verb when present.
func (c *Config) ResolveSecrets(ctx context.Context, cli *vault.Client) error {
	var err error
	if c.Database.Password, err = resolveRef(ctx, cli, c.Database.Password); err != nil {
		return fmt.Errorf("database password: %w", err)
	}
	if c.Provider.APIToken, err = resolveRef(ctx, cli, c.Provider.APIToken); err != nil {
		return fmt.Errorf("provider token: %w", err)
	}
	if c.Database.Password != "" && strings.Contains(c.Database.DSN, "%s") {
		c.Database.DSN = fmt.Sprintf(c.Database.DSN, c.Database.Password)
	}
	return nil
}

func resolveRef(ctx context.Context, cli *vault.Client, val string) (string, error) {
	if !strings.HasPrefix(val, vaultPrefix) {
		return val, nil
	}
	if cli == nil {
		return "", fmt.Errorf("vault reference %q but no Vault client configured", val)
	}
	ref := strings.TrimPrefix(val, vaultPrefix)
	path, key, ok := strings.Cut(ref, "#")
	if !ok {
		return "", fmt.Errorf("malformed vault reference %q (want vault:<path>#<key>)", val)
	}
	return cli.GetKV(ctx, path, key, 5*time.Minute)
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

func Get() *Config  { return current.Load() }
func Reload() error { _, err := Load(); return err }
