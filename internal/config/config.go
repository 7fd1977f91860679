package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr  string
	BaseURL     string
	Timezone    string
	AutoMigrate bool

	DB struct {
		DSN string
	}

	Admin struct {
		TokenHash     string
		OIDCIssuerURL string
		OIDCClientID  string
	}

	GHL struct {
		APIKey     string
		LocationID string
		CalendarID string
		BaseURL    string
		SyncDelay  time.Duration
		PastDays   int
		FutureDays int
	}

	// Studio details printed on booking confirmations.
	Studio struct {
		Address string
		Email   string
	}

	PrometheusEnabled bool
	TrustedProxies    []string
}

func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.Timezone = getenvDefault("APP_TIMEZONE", "UTC")
	cfg.AutoMigrate = getenvBool("APP_AUTO_MIGRATE", false)
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.Admin.TokenHash = os.Getenv("APP_ADMIN_TOKEN_HASH")
	cfg.Admin.OIDCIssuerURL = os.Getenv("APP_OIDC_ISSUER_URL")
	cfg.Admin.OIDCClientID = os.Getenv("APP_OIDC_CLIENT_ID")

	cfg.GHL.APIKey = os.Getenv("GHL_API_KEY")
	cfg.GHL.LocationID = os.Getenv("GHL_LOCATION_ID")
	cfg.GHL.CalendarID = os.Getenv("GHL_CALENDAR_ID")
	cfg.GHL.BaseURL = getenvDefault("GHL_BASE_URL", "https://services.leadconnectorhq.com")
	cfg.GHL.SyncDelay = getenvDuration("GHL_SYNC_DELAY", 200*time.Millisecond)
	cfg.GHL.PastDays = getenvInt("GHL_PAST_DAYS", 7)
	cfg.GHL.FutureDays = getenvInt("GHL_FUTURE_DAYS", 90)

	cfg.Studio.Address = os.Getenv("APP_STUDIO_ADDRESS")
	cfg.Studio.Email = os.Getenv("APP_STUDIO_EMAIL")

	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	if cfg.Admin.TokenHash == "" && cfg.Admin.OIDCIssuerURL == "" {
		return nil, errors.New("admin auth is required: set APP_ADMIN_TOKEN_HASH or APP_OIDC_ISSUER_URL")
	}
	if cfg.Admin.OIDCIssuerURL != "" && cfg.Admin.OIDCClientID == "" {
		return nil, errors.New("APP_OIDC_CLIENT_ID is required when APP_OIDC_ISSUER_URL is set")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}

	if len(cfg.TrustedProxies) == 0 {
		fmt.Println("WARNING: No APP_TRUSTED_PROXIES configured. Rate limiting will trust X-Forwarded-For from any peer.")
	}

	return cfg, nil
}

// Location returns the studio time zone used to interpret local date/time strings.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
