package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/kart-discounts/internal/discount"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (KART_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	CatalogPath string `default:"catalog.json" usage:"Catalog document with products and discount rules (.json or .json.gz)" flag:"catalog"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL); in-memory storage when empty" flag:"database-url"`
	Discounts   DiscountsConfig
	Receipts    ReceiptsConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// DiscountsConfig controls discount resolution.
type DiscountsConfig struct {
	Policy      string `default:"greedy" usage:"Conflict policy: greedy or legacy"`
	Concurrency int    `default:"8" usage:"Carts priced concurrently by batch checkouts (0 = unbounded)"`
}

// ReceiptsConfig controls the in-memory receipt store.
type ReceiptsConfig struct {
	Capacity int `default:"1024" usage:"Receipts kept in memory when no database is configured"`
}

// AuthConfig enables API key authentication for checkout routes when
// APIKeyHashes is non-empty.
type AuthConfig struct {
	APIKeyPepper string   `usage:"HMAC pepper for API key hashing (KART_AUTH_API_KEY_PEPPER)" flag:"api-key-pepper"`
	APIKeyHashes []string `usage:"Hex HMAC-SHA256 digests of accepted API keys" flag:"api-key-hashes"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window (0 disables)"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags and YAML
// config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{})
}

func loadConfig(base aconfig.Config) (*Config, error) {
	base.EnvPrefix = "KART"
	if base.Files == nil {
		base.Files = []string{"config.yaml", "/etc/kart/config.yaml"}
	}
	base.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, base).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration values the server cannot start with.
func (c *Config) Validate() error {
	if c.CatalogPath == "" {
		return errors.New("catalog path is required")
	}
	if _, err := discount.ParsePolicy(c.Discounts.Policy); err != nil {
		return errors.Wrap(err, "discounts policy")
	}
	if c.Receipts.Capacity <= 0 {
		return errors.Errorf("receipts capacity must be positive, got %d", c.Receipts.Capacity)
	}
	if len(c.Auth.APIKeyHashes) > 0 && c.Auth.APIKeyPepper == "" {
		return errors.New("api key pepper is required when api key hashes are set")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
