package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "https://openlibrary.org", cfg.SearchBaseURL)
	assert.Equal(t, 10*time.Second, cfg.SearchTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_PATH", "/tmp/x.db")
	t.Setenv("SEARCH_TIMEOUT", "3s")
	t.Setenv("SEARCH_RATE_LIMIT", "0.5")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	assert.Equal(t, 3*time.Second, cfg.SearchTimeout)
	assert.InDelta(t, 0.5, cfg.SearchRateLimit, 0.0001)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "eighty")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_TOMLFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readtrack.toml")
	contents := `
port = 7000
database_path = "/data/readtrack.db"
search_timeout = "2s"
session_ttl = "1h"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_PATH", "/override.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.ServerPort)
	assert.Equal(t, "/override.db", cfg.DatabasePath)
	assert.Equal(t, 2*time.Second, cfg.SearchTimeout)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
}
