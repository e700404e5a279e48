// Package config loads and validates portal configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	// Port is the HTTP listen port of the gateway.
	Port string `mapstructure:"PORT"`
	// DatabaseURL is the Postgres DSN (required).
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AuthorizedIPs is the comma-separated allow-list of client IPs permitted to log in.
	AuthorizedIPs string `mapstructure:"AUTHORIZED_IPS"`
	// BusinessTimezone is the IANA zone used for business-hours checks.
	BusinessTimezone string `mapstructure:"BUSINESS_TIMEZONE"`
	// BusinessOpenHour is the first hour of the day (inclusive) in which non-admins may work.
	BusinessOpenHour int `mapstructure:"BUSINESS_OPEN_HOUR"`
	// BusinessCloseHour is the hour (exclusive) at which business hours end.
	BusinessCloseHour int `mapstructure:"BUSINESS_CLOSE_HOUR"`
	// SessionTTLRaw is the session validity window (e.g. "8h").
	SessionTTLRaw string `mapstructure:"SESSION_TTL"`
	// PortalURL is the base URL downstream apps call for session verification.
	PortalURL string `mapstructure:"PORTAL_URL"`
	// VerifyTimeoutRaw bounds each verify-session call made by downstream apps (e.g. "3s").
	VerifyTimeoutRaw string `mapstructure:"VERIFY_TIMEOUT"`
	// BcryptCost is the bcrypt cost factor (4-31).
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// RedisAddr enables the shared Redis login rate limiter when set.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// LoginRateLimit is the number of login requests allowed per IP per LoginRateWindowRaw.
	LoginRateLimit     int    `mapstructure:"LOGIN_RATE_LIMIT"`
	LoginRateWindowRaw string `mapstructure:"LOGIN_RATE_WINDOW"`
	// Env is the application environment ("development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig()

	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTHORIZED_IPS", "")
	v.SetDefault("BUSINESS_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("BUSINESS_OPEN_HOUR", 8)
	v.SetDefault("BUSINESS_CLOSE_HOUR", 18)
	v.SetDefault("SESSION_TTL", "8h")
	v.SetDefault("PORTAL_URL", "")
	v.SetDefault("VERIFY_TIMEOUT", "3s")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("LOGIN_RATE_LIMIT", 20)
	v.SetDefault("LOGIN_RATE_WINDOW", "10m")
	v.SetDefault("APP_ENV", "development")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("config: DATABASE_URL environment variable is required")
	}
	if cfg.Port == "" {
		return nil, errors.New("config: PORT must be set")
	}
	if cfg.PortalURL == "" {
		cfg.PortalURL = "http://localhost:" + cfg.Port
	}
	cfg.PortalURL = strings.TrimRight(cfg.PortalURL, "/")

	if cfg.BusinessOpenHour < 0 || cfg.BusinessCloseHour > 24 || cfg.BusinessOpenHour >= cfg.BusinessCloseHour {
		return nil, fmt.Errorf("config: invalid business hours [%d, %d)", cfg.BusinessOpenHour, cfg.BusinessCloseHour)
	}
	if _, err := time.LoadLocation(cfg.BusinessTimezone); err != nil {
		return nil, fmt.Errorf("config: BUSINESS_TIMEZONE %q: %w", cfg.BusinessTimezone, err)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if cfg.LoginRateLimit <= 0 {
		return nil, errors.New("config: LOGIN_RATE_LIMIT must be positive")
	}

	return &cfg, nil
}

// AuthorizedIPList returns the allow-list entries from the comma-separated config.
func (c *Config) AuthorizedIPList() []string {
	if c == nil || c.AuthorizedIPs == "" {
		return nil
	}
	parts := strings.Split(c.AuthorizedIPs, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Location returns the business timezone. Load already validated it; UTC is the fallback.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionTTL parses SessionTTLRaw. Returns 8h if unset or invalid.
func (c *Config) SessionTTL() time.Duration {
	return parseDuration(c.SessionTTLRaw, 8*time.Hour)
}

// VerifyTimeout parses VerifyTimeoutRaw. Returns 3s if unset or invalid.
func (c *Config) VerifyTimeout() time.Duration {
	return parseDuration(c.VerifyTimeoutRaw, 3*time.Second)
}

// LoginRateWindow parses LoginRateWindowRaw. Returns 10m if unset or invalid.
func (c *Config) LoginRateWindow() time.Duration {
	return parseDuration(c.LoginRateWindowRaw, 10*time.Minute)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
