package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port    int    `env:"HTTP_PORT" envDefault:"8888"`
	BaseURL string `env:"BASE_URL"`

	BundleURL     string `env:"BUNDLE_URL"`
	CatalogGroup  string `env:"CATALOG_GROUP" envDefault:"germany"`
	RefreshCron   string `env:"CATALOG_REFRESH_CRON" envDefault:"0 0 * * *"`
	WarmOnBoot    bool   `env:"CATALOG_WARM_ON_BOOT" envDefault:"false"`
	BouquetName   string `env:"BOUQUET_NAME" envDefault:"iptv - All Channels"`
	PingURL       string `env:"PING_URL" envDefault:"https://www.vavoo.tv/api/box/ping2"`
	TokenPoolPath string `env:"TOKEN_POOL_PATH" envDefault:"tokens.txt"`

	// StaticSignature skips the signing endpoint when set.
	StaticSignature string `env:"VAVOO_AUTH"`

	ProviderUserAgent  string `env:"PROVIDER_USER_AGENT" envDefault:"VAVOO/2.6"`
	ProviderAgentMatch string `env:"PROVIDER_AGENT_MATCH" envDefault:"vavoo"`

	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
	ChunkSize       int           `env:"CHUNK_SIZE" envDefault:"32768"`

	Debug    bool `env:"DEBUG" envDefault:"false"`
	SafeLogs bool `env:"SAFE_LOGS" envDefault:"false"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.BundleURL == "" {
		errs = append(errs, errors.New("BUNDLE_URL is required"))
	}
	if c.StaticSignature == "" && c.TokenPoolPath == "" {
		errs = append(errs, errors.New("TOKEN_POOL_PATH is required when VAVOO_AUTH is not set"))
	}
	if c.StaticSignature == "" && c.PingURL == "" {
		errs = append(errs, errors.New("PING_URL is required when VAVOO_AUTH is not set"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, fmt.Errorf("UPSTREAM_TIMEOUT must be positive, got %s", c.UpstreamTimeout))
	}
	return errors.Join(errs...)
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
