package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	ServerPort   int    `toml:"port"`
	DatabasePath string `toml:"database_path"`
	AppEnv       string `toml:"app_env"`
	LogLevel     string `toml:"log_level"`

	JWTSecret  string        `toml:"jwt_secret"`
	SessionTTL time.Duration `toml:"-"`

	SearchBaseURL   string        `toml:"search_base_url"`
	SearchTimeout   time.Duration `toml:"-"`
	SearchRateLimit float64       `toml:"search_rate_limit"` // requests per second, 0 disables
	SearchRateBurst int           `toml:"search_rate_burst"`

	CORSOrigins []string `toml:"cors_origins"`

	// Durations are read from TOML as strings ("24h", "10s").
	SessionTTLRaw    string `toml:"session_ttl"`
	SearchTimeoutRaw string `toml:"search_timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ServerPort:      8080,
		DatabasePath:    "./readtrack.db",
		AppEnv:          "development",
		LogLevel:        "info",
		SessionTTL:      24 * time.Hour,
		SearchBaseURL:   "https://openlibrary.org",
		SearchTimeout:   10 * time.Second,
		SearchRateBurst: 1,
		CORSOrigins:     []string{"http://localhost:3000"},
	}
}

// Load builds the configuration from defaults, an optional TOML file named by
// CONFIG_FILE, an optional .env file and finally the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "readtrack-development-secret"
	}
	return cfg, nil
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) loadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	var err error
	if c.SessionTTLRaw != "" {
		if c.SessionTTL, err = time.ParseDuration(c.SessionTTLRaw); err != nil {
			return fmt.Errorf("invalid session_ttl: %w", err)
		}
	}
	if c.SearchTimeoutRaw != "" {
		if c.SearchTimeout, err = time.ParseDuration(c.SearchTimeoutRaw); err != nil {
			return fmt.Errorf("invalid search_timeout: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnv() error {
	var err error
	if v, ok := os.LookupEnv("PORT"); ok {
		if c.ServerPort, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
	}
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.SearchBaseURL = getEnv("SEARCH_BASE_URL", c.SearchBaseURL)

	if v, ok := os.LookupEnv("SESSION_TTL"); ok {
		if c.SessionTTL, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
	}
	if v, ok := os.LookupEnv("SEARCH_TIMEOUT"); ok {
		if c.SearchTimeout, err = time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid SEARCH_TIMEOUT: %w", err)
		}
	}
	if v, ok := os.LookupEnv("SEARCH_RATE_LIMIT"); ok {
		if c.SearchRateLimit, err = strconv.ParseFloat(v, 64); err != nil {
			return fmt.Errorf("invalid SEARCH_RATE_LIMIT: %w", err)
		}
	}
	if v, ok := os.LookupEnv("SEARCH_RATE_BURST"); ok {
		if c.SearchRateBurst, err = strconv.Atoi(v); err != nil {
			return fmt.Errorf("invalid SEARCH_RATE_BURST: %w", err)
		}
	}
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(v)
	}
	return nil
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
