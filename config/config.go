// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"warungsoal-progression/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL    string
	Port           string
	GatewayToken   string
	AllowedOrigins []string

	SyncServiceURL      string
	ServiceToken        string
	ProfileSyncInterval time.Duration
	AuthServiceURL      string

	SeasonLength        time.Duration
	SeasonCheckInterval time.Duration

	ProgressionMaxAttempts int
	ProgressionRetryBase   time.Duration

	R2 utils.R2Config
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		utils.LogWarn("⚠️  No .env file found, reading environment variables directly")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		DatabaseURL:    p.required("DATABASE_URL"),
		Port:           p.str("PORT", "5200"),
		GatewayToken:   p.required("GATEWAY_TOKEN"),
		AllowedOrigins: splitList(p.str("ALLOWED_ORIGINS", "http://localhost:3000")),

		SyncServiceURL:      getenv("SYNC_SERVICE_URL"),
		ServiceToken:        getenv("SERVICE_TOKEN"),
		ProfileSyncInterval: p.duration("PROFILE_SYNC_INTERVAL", time.Minute),
		AuthServiceURL:      getenv("AUTH_SERVICE_URL"),

		SeasonLength:        time.Duration(p.integer("SEASON_LENGTH_DAYS", 90)) * 24 * time.Hour,
		SeasonCheckInterval: p.duration("SEASON_CHECK_INTERVAL", time.Minute),

		ProgressionMaxAttempts: p.integer("PROGRESSION_MAX_ATTEMPTS", 3),
		ProgressionRetryBase:   p.duration("PROGRESSION_RETRY_BASE", 25*time.Millisecond),

		R2: utils.R2Config{
			AccountID:       getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      getenv("CDN_BASE_URL"),
		},
	}

	if cfg.SeasonLength <= 0 {
		p.fail("SEASON_LENGTH_DAYS", "must be positive")
	}
	if cfg.ProgressionMaxAttempts < 1 {
		p.fail("PROGRESSION_MAX_ATTEMPTS", "must be at least 1")
	}
	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

// ProfileSyncEnabled reports whether the profile mirror has an upstream.
func (c *Config) ProfileSyncEnabled() bool {
	return c.SyncServiceURL != "" && c.ServiceToken != ""
}

// parser records the first error and keeps going so callers get one error back.
type parser struct {
	getenv func(string) string
	err    error
}

func (p *parser) fail(key, msg string) {
	if p.err == nil {
		p.err = fmt.Errorf("config: %s %s", key, msg)
	}
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) required(key string) string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		p.fail(key, "is required")
	}
	return v
}

func (p *parser) integer(key string, def int) int {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, fmt.Sprintf("is not an integer: %q", raw))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		p.fail(key, fmt.Sprintf("is not a positive duration: %q", raw))
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
