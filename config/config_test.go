package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"PORT", "GIN_MODE", "STORAGE_DRIVER", "DATA_DIR", "DB_DSN", "CORS_ORIGINS",
	"CATEGORY_SEED_FILE", "LOG_LEVEL", "LOG_FORMAT", "ALLOW_ROLE_SELECTION",
	"LOCK_TIMEOUT", "LOCK_SWEEP_INTERVAL", "REQUEST_TIMEOUT", "RATE_LIMIT_RPS",
	"RATE_LIMIT_BURST", "JWT_SECRET", "JWT_EXPIRATION",
}

func clearEnv(t *testing.T) {
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "json", cfg.StorageDriver)
	assert.Equal(t, 30*time.Minute, cfg.LockTimeout)
	assert.Equal(t, time.Minute, cfg.LockSweepInterval)
	assert.Equal(t, []string{"*"}, cfg.CorsOrigins)
	assert.False(t, cfg.AllowRoleSelection)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, []byte(devJWTSecret), cfg.JWT.Secret)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("LOCK_TIMEOUT", "5m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ALLOW_ROLE_SELECTION", "true")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRATION", "2h")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqlite", cfg.StorageDriver)
	assert.Equal(t, 5*time.Minute, cfg.LockTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CorsOrigins)
	assert.True(t, cfg.AllowRoleSelection)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, []byte("s3cret"), cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiration)
}

func TestFromEnvCollectsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "70000")
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("LOCK_TIMEOUT", "soon")
	t.Setenv("RATE_LIMIT_BURST", "many")

	_, err := FromEnv()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "invalid port")
	assert.Contains(t, msg, "DB_DSN is required")
	assert.Contains(t, msg, "LOCK_TIMEOUT")
	assert.Contains(t, msg, "RATE_LIMIT_BURST")
}

func TestLoadReadsDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=7070\nSTORAGE_DRIVER=memory\n"), 0o600))
	t.Setenv("ENV_PATH", path)
	// godotenv does not override variables that are already set
	os.Unsetenv("PORT")
	os.Unsetenv("STORAGE_DRIVER")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "memory", cfg.StorageDriver)
}

func TestLoadCategorySeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`categories:
  - name: Network
    description: VPN and Wi-Fi
  - name: Accounts
`), 0o600))

	seeds, err := LoadCategorySeed(path)
	require.NoError(t, err)
	require.Len(t, seeds, 2)
	assert.Equal(t, "Network", seeds[0].Name)
	assert.Equal(t, "VPN and Wi-Fi", seeds[0].Description)

	_, err = LoadCategorySeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("categories: [unclosed"), 0o600))
	_, err = LoadCategorySeed(bad)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
