// Package config loads PhotoSync configuration from the environment and an
// optional .env file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kimhsiao/photosync/internal/apperr"
)

// RateRule is one (max requests, window) pair for a request category.
type RateRule struct {
	MaxRequests int
	Window      time.Duration
}

// RateLimitConfig holds the limiter rules and global switch.
type RateLimitConfig struct {
	Enabled bool
	// Rules maps category name (auth, api, download, upload, default) to
	// its rule. Every category named here gets an entry; env overrides
	// replace individual fields.
	Rules map[string]RateRule
	// SweepInterval is how often the background cleanup runs.
	SweepInterval time.Duration
	// Retention is how long request timestamps are kept before the sweep
	// discards them.
	Retention time.Duration
}

// ProfileSpec is a resize profile as configured via RESIZE_PROFILES JSON.
// Profiles configured this way are seeded into the database on startup.
type ProfileSpec struct {
	Name              string `json:"name"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	IncludeHorizontal bool   `json:"include_horizontal"`
	IncludeVertical   bool   `json:"include_vertical"`
}

// Config holds all runtime configuration.
type Config struct {
	Port    string
	DataDir string

	ImmichURL    string
	ImmichAPIKey string

	ResizeProfiles []ProfileSpec

	QueueCapacity int
	WorkerCount   int

	JWTSecret string

	LogLevel string
	LogJSON  bool

	RateLimit RateLimitConfig
}

// Default rate-limit rules per request category.
var defaultRateRules = map[string]RateRule{
	"auth":     {MaxRequests: 10, Window: time.Minute},
	"api":      {MaxRequests: 120, Window: time.Minute},
	"download": {MaxRequests: 30, Window: time.Minute},
	"upload":   {MaxRequests: 20, Window: time.Minute},
	"default":  {MaxRequests: 60, Window: time.Minute},
}

// Load reads configuration from .env (if present) and the environment, then
// validates it. Out-of-range values are rejected, not clamped.
func Load() (*Config, error) {
	// Missing .env is fine; the environment alone is a valid source.
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8090"),
		DataDir:       getEnv("DATA_DIR", "./data"),
		ImmichURL:     os.Getenv("IMMICH_URL"),
		ImmichAPIKey:  os.Getenv("IMMICH_API_KEY"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogJSON:       getBool("LOG_JSON", true),
		QueueCapacity: 100,
		WorkerCount:   1,
		RateLimit: RateLimitConfig{
			Enabled:       getBool("RATE_LIMIT_ENABLED", true),
			Rules:         make(map[string]RateRule, len(defaultRateRules)),
			SweepInterval: 5 * time.Minute,
			Retention:     time.Hour,
		},
	}

	var err error
	if cfg.QueueCapacity, err = getInt("QUEUE_CAPACITY", cfg.QueueCapacity); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = getInt("WORKER_COUNT", cfg.WorkerCount); err != nil {
		return nil, err
	}

	if raw := os.Getenv("RESIZE_PROFILES"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.ResizeProfiles); err != nil {
			return nil, apperr.Invalid("RESIZE_PROFILES is not valid JSON: %v", err)
		}
	}

	for category, rule := range defaultRateRules {
		if rule, err = overrideRule(category, rule); err != nil {
			return nil, err
		}
		cfg.RateLimit.Rules[category] = rule
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.QueueCapacity < 1 {
		return apperr.Invalid("QUEUE_CAPACITY must be >= 1, got %d", c.QueueCapacity)
	}
	if c.WorkerCount < 1 {
		return apperr.Invalid("WORKER_COUNT must be >= 1, got %d", c.WorkerCount)
	}
	for _, p := range c.ResizeProfiles {
		if p.Name == "" {
			return apperr.Invalid("resize profile with empty name")
		}
		if p.Width < 1 || p.Height < 1 {
			return apperr.Invalid("resize profile %q has non-positive dimensions %dx%d",
				p.Name, p.Width, p.Height)
		}
	}
	for category, rule := range c.RateLimit.Rules {
		if rule.MaxRequests < 1 {
			return apperr.Invalid("rate limit for %s: max requests must be >= 1", category)
		}
		if rule.Window <= 0 {
			return apperr.Invalid("rate limit for %s: window must be positive", category)
		}
	}
	return nil
}

// overrideRule applies RATE_LIMIT_<CATEGORY>_MAX and _WINDOW env overrides.
func overrideRule(category string, rule RateRule) (RateRule, error) {
	prefix := "RATE_LIMIT_" + toEnvName(category)
	var err error
	if rule.MaxRequests, err = getInt(prefix+"_MAX", rule.MaxRequests); err != nil {
		return rule, err
	}
	if raw := os.Getenv(prefix + "_WINDOW"); raw != "" {
		d, derr := time.ParseDuration(raw)
		if derr != nil {
			return rule, apperr.Invalid("%s_WINDOW: %v", prefix, derr)
		}
		rule.Window = d
	}
	return rule, nil
}

func toEnvName(category string) string {
	out := make([]byte, len(category))
	for i := 0; i < len(category); i++ {
		c := category[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Invalid("%s: %v", key, err)
	}
	return n, nil
}

// String renders the config for startup logging with the API key redacted.
func (c *Config) String() string {
	key := c.ImmichAPIKey
	if key != "" {
		key = "<redacted>"
	}
	return fmt.Sprintf("port=%s data=%s immich=%s key=%s workers=%d queue=%d profiles=%d",
		c.Port, c.DataDir, c.ImmichURL, key, c.WorkerCount, c.QueueCapacity, len(c.ResizeProfiles))
}
