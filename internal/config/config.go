package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port               string   `mapstructure:"PORT"`
	Env                string   `mapstructure:"ENV"`
	DatabaseURL        string   `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32    `mapstructure:"DB_MIN_CONNS"`
	SupabaseJWTSecret  string   `mapstructure:"SUPABASE_JWT_SECRET"`
	NexHealthAPIKey    string   `mapstructure:"NEXHEALTH_API_KEY"`
	NexHealthSubdomain string   `mapstructure:"NEXHEALTH_SUBDOMAIN"`
	NexHealthLocation  string   `mapstructure:"NEXHEALTH_LOCATION_ID"`
	NexHealthBaseURL   string   `mapstructure:"NEXHEALTH_BASE_URL"`
	UpstreamTimeoutSec int      `mapstructure:"UPSTREAM_TIMEOUT_SECONDS"`
	CacheFile          string   `mapstructure:"CACHE_FILE"`
	CacheTTLHours      int      `mapstructure:"CACHE_TTL_HOURS"`
	CORSOrigins        []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS       float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst     int      `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("NEXHEALTH_BASE_URL", "https://nexhealth.info")
	v.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 30)
	v.SetDefault("CACHE_FILE", "nexhealth-cache.json")
	v.SetDefault("CACHE_TTL_HOURS", 24)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("SUPABASE_JWT_SECRET")
	v.BindEnv("NEXHEALTH_API_KEY")
	v.BindEnv("NEXHEALTH_SUBDOMAIN")
	v.BindEnv("NEXHEALTH_LOCATION_ID")
	v.BindEnv("NEXHEALTH_BASE_URL")
	v.BindEnv("UPSTREAM_TIMEOUT_SECONDS")
	v.BindEnv("CACHE_FILE")
	v.BindEnv("CACHE_TTL_HOURS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasDatabase reports whether a Postgres connection is configured. When it
// is not, database-backed adapters stay unregistered and their routes answer
// with a service-unavailable envelope.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// HasNexHealth reports whether the NexHealth upstream is configured.
func (c *Config) HasNexHealth() bool {
	return c.NexHealthAPIKey != "" && c.NexHealthSubdomain != ""
}

// UpstreamTimeout returns the per-request timeout for NexHealth calls.
func (c *Config) UpstreamTimeout() time.Duration {
	return time.Duration(c.UpstreamTimeoutSec) * time.Second
}

// CacheTTL returns how long cached upstream pages stay fresh.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// Validate checks that the configuration is safe to run. Missing upstream or
// database credentials degrade the matching adapters rather than failing
// startup, but values that are present must be coherent, and production
// requires the JWT secret so session verification is enforced.
func (c *Config) Validate() error {
	if c.UpstreamTimeoutSec <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be positive, got %d", c.UpstreamTimeoutSec)
	}
	if c.CacheTTLHours <= 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must be positive, got %d", c.CacheTTLHours)
	}
	if c.NexHealthBaseURL == "" {
		return fmt.Errorf("NEXHEALTH_BASE_URL must not be empty")
	}
	if !strings.HasPrefix(c.NexHealthBaseURL, "http://") && !strings.HasPrefix(c.NexHealthBaseURL, "https://") {
		return fmt.Errorf("NEXHEALTH_BASE_URL must be an http(s) URL, got %q", c.NexHealthBaseURL)
	}
	if c.NexHealthAPIKey != "" && c.NexHealthSubdomain == "" {
		return fmt.Errorf("NEXHEALTH_SUBDOMAIN is required when NEXHEALTH_API_KEY is set")
	}
	if c.IsProduction() && c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required in production")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
