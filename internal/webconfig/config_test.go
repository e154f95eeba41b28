package webconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server defaults
	assert.Equal(t, 18800, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Bind)
	assert.Empty(t, cfg.Server.CORSOrigins)

	// Auth defaults
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, "24h", cfg.Auth.JWTExpire)
	assert.False(t, cfg.Auth.AllowRegistration)

	// Database defaults
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.SQLitePath, "osintdeck.db")

	// Log defaults
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "production", cfg.Log.Mode)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
	assert.True(t, cfg.Log.Compress)

	// Rate limit + enrichment defaults
	assert.Equal(t, "memory", cfg.RateLimit.Backend)
	assert.Empty(t, cfg.RateLimit.Budgets)
	assert.Equal(t, 200, cfg.Enrichment.SocialDelayMS)
	assert.True(t, cfg.Enrichment.CacheEnabled)
	assert.Empty(t, cfg.Security.APIKeyEncryptionKey)
}

func TestConfig_ListenAddr(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Bind: "127.0.0.1", Port: 8080}}
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr())
}

func TestConfig_JWTExpireDuration(t *testing.T) {
	tests := []struct {
		name     string
		expire   string
		expected time.Duration
	}{
		{"24 hours", "24h", 24 * time.Hour},
		{"30 minutes", "30m", 30 * time.Minute},
		{"invalid", "invalid", 24 * time.Hour}, // fallback
		{"empty", "", 24 * time.Hour},          // fallback
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Auth: AuthConfig{JWTExpire: tt.expire}}
			assert.Equal(t, tt.expected, cfg.JWTExpireDuration())
		})
	}
}

func TestConfig_IsDebug(t *testing.T) {
	for mode, expected := range map[string]bool{"debug": true, "DEBUG": true, "production": false, "": false} {
		cfg := &Config{Log: LogConfig{Mode: mode}}
		assert.Equal(t, expected, cfg.IsDebug(), mode)
	}
}

func TestConfig_SocialDelay(t *testing.T) {
	cfg := &Config{Enrichment: EnrichmentConfig{SocialDelayMS: 250}}
	assert.Equal(t, 250*time.Millisecond, cfg.SocialDelay())

	cfg.Enrichment.SocialDelayMS = -1
	assert.Zero(t, cfg.SocialDelay())
}

func TestLoad_FileAndEnvLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "osintdeck.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"server": {"port": 9000},
		"rate_limit": {"budgets": {"ip": {"max": 20, "window_seconds": 30}}}
	}`), 0o600))

	t.Setenv("OSD_CONFIG", path)
	t.Setenv("OSD_BIND", "127.0.0.1")
	t.Setenv("OSD_RATELIMIT_BACKEND", "redis")
	t.Setenv("OSD_REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, "redis", cfg.RateLimit.Backend)
	assert.Equal(t, "localhost:6379", cfg.RateLimit.RedisAddr)
	assert.Equal(t, BudgetConfig{Max: 20, WindowSeconds: 30}, cfg.RateLimit.Budgets["ip"])

	// generated secret is persisted
	assert.Len(t, cfg.Auth.JWTSecret, 64)
	again, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg.Auth.JWTSecret, again.Auth.JWTSecret)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	t.Setenv("OSD_CONFIG", path)

	_, err := Load()
	assert.Error(t, err)
}
