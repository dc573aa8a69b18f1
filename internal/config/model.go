// internal/config/model.go
//
// Typed configuration model for the serving edge.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                    – dotenv values,
//   • `conf/global.yaml`                      – primary static file,
//   • `EDGE_`-prefixed environment overrides  – highest precedence.
//
// Any value whose string begins with the prefix `vault:` is resolved
// through the Vault client after unmarshalling, so downstream code never
// sees Vault URIs—only plain strings.
//
// Validation happens immediately after unmarshal; the process fails fast
// if required fields are missing.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"`—Koanf ignores `yaml` tags
//     unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
package config

import "time"

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	ForceHTTPS bool   `koanf:"force_https"`
}

//
// Database section
//

// Database holds the control-plane DSN and its secret.
//
// The DSN template is kept in YAML so operators can tweak host, port, or
// flags without touching Vault.  The password may be a plain string or a
// `vault:<path>#<key>` reference resolved at boot.  When the DSN contains
// a `%s` verb the password is substituted into it.
type Database struct {
	DSN      string `koanf:"dsn"      validate:"required"`
	Password string `koanf:"password"`
}

//
// Renderer section
//

// Renderer locates the external HTML renderer that writes snapshot rows.
type Renderer struct {
	Endpoint string        `koanf:"endpoint" validate:"required,url"`
	Timeout  time.Duration `koanf:"timeout"`
}

//
// Provider section
//

// Provider locates the hosting/DNS/certificate provider API.  The token may
// be a `vault:` reference.
type Provider struct {
	Endpoint string        `koanf:"endpoint" validate:"required,url"`
	APIToken string        `koanf:"api_token"`
	Timeout  time.Duration `koanf:"timeout"`
}

//
// DNS section
//

// DNS configures live record verification.  PlatformHosts are the canonical
// hostnames a tenant CNAME/ALIAS must point at before a domain counts as
// DNS-configured.
type DNS struct {
	PlatformHosts []string      `koanf:"platform_hosts" validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"`
}

//
// Lifecycle section
//

// Lifecycle tunes the background domain-provisioning poller.
type Lifecycle struct {
	PollInterval time.Duration `koanf:"poll_interval"`
}

//
// Cache section
//

// Cache tunes the in-process verified-domain record cache.  RecordTTL bounds
// how long an eligibility verdict may lag the registry.
type Cache struct {
	RecordTTL  time.Duration `koanf:"record_ttl"`
	MaxEntries int           `koanf:"max_entries"`
}

//
// Crawler section
//

// Crawler extends the built-in fetcher token list without a redeploy.
type Crawler struct {
	ExtraTokens []string `koanf:"extra_tokens"`
}

//
// GeoIP section
//

// GeoIP points at an optional GeoLite2-City database.  Empty disables geo
// enrichment.
type GeoIP struct {
	DBPath string `koanf:"db_path"`
}

//
// Shell section
//

// Shell describes the application-shell document served to human browsers:
// the document title and the client bundle URL the storefront boots from.
type Shell struct {
	Title     string `koanf:"title"`
	BundleURL string `koanf:"bundle_url"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime—never set in YAML or env.  The loader
// discovers `Root` (repo root or EDGE_ROOT override) so later code can
// build absolute file paths.
type Paths struct {
	Root string // EDGE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the process lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Database  Database  `koanf:"database"`
	Renderer  Renderer  `koanf:"renderer"`
	Provider  Provider  `koanf:"provider"`
	DNS       DNS       `koanf:"dns"`
	Lifecycle Lifecycle `koanf:"lifecycle"`
	Cache     Cache     `koanf:"cache"`
	Crawler   Crawler   `koanf:"crawler"`
	GeoIP     GeoIP     `koanf:"geoip"`
	Shell     Shell     `koanf:"shell"`
	Paths     Paths     `koanf:"-"` // not loaded from config files
}
