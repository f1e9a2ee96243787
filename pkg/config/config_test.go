package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"APP_ENV", "LOG_LEVEL", "LOG_FORMAT", "RENDEZVOUS_USER_ID", "ENCRYPTION_KEY",
	"DATABASE_URL", "SQLITE_PATH", "DATABASE_MAX_CONNS", "REDIS_URL", "RABBITMQ_URL",
	"HEALTH_PORT", "GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET",
	"MICROSOFT_CLIENT_ID", "MICROSOFT_CLIENT_SECRET", "MICROSOFT_TENANT",
	"SYNC_SCHEDULE", "SYNC_LOOKBEHIND_DAYS", "SYNC_LOOKAHEAD_DAYS", "SYNC_FULL_RESYNC_INTERVAL",
	"PROVIDER_FETCH_TIMEOUT", "TOKEN_REFRESH_THRESHOLD", "SYNC_NOTIFY_CHANNEL",
	"MCP_ADDR", "MCP_AUTH_TOKEN", FileEnvVar,
}

// isolateEnv blanks every variable Load reads so host settings do not leak in.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, v := range configEnvVars {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.DatabaseURL)
	assert.Equal(t, 10, cfg.DatabaseMaxConns)
	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)
	assert.Equal(t, "common", cfg.MicrosoftTenant)

	assert.Equal(t, "@every 6h", cfg.SyncSchedule)
	assert.Equal(t, 24*time.Hour, cfg.LookBehind())
	assert.Equal(t, 30*24*time.Hour, cfg.LookAhead())
	assert.Equal(t, 24*time.Hour, cfg.SyncFullResync)
	assert.Equal(t, 30*time.Second, cfg.ProviderFetchTimeout)
	assert.Equal(t, 5*time.Minute, cfg.TokenRefreshThreshold)
	assert.Equal(t, "calendar_sync_requests", cfg.SyncNotifyChannel)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolateEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://rendezvous@localhost/rendezvous")
	t.Setenv("SYNC_LOOKAHEAD_DAYS", "14")
	t.Setenv("PROVIDER_FETCH_TIMEOUT", "10s")
	t.Setenv("HEALTH_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://rendezvous@localhost/rendezvous", cfg.DatabaseURL)
	assert.Equal(t, 14, cfg.SyncLookAheadDays)
	assert.Equal(t, 10*time.Second, cfg.ProviderFetchTimeout)
	assert.Equal(t, "0.0.0.0:9090", cfg.WorkerHealthAddr)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SYNC_LOOKAHEAD_DAYS", "soon")
	t.Setenv("TOKEN_REFRESH_THRESHOLD", "later")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.SyncLookAheadDays)
	assert.Equal(t, 5*time.Minute, cfg.TokenRefreshThreshold)
}

func TestLoad_YAMLFileIsOverriddenByEnvironment(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "rendezvous.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sync_schedule: "@every 1h"
sync_lookahead_days: 7
mcp_addr: 127.0.0.1:9999
log_level: debug
`), 0o600))
	t.Setenv(FileEnvVar, path)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "@every 1h", cfg.SyncSchedule)
	assert.Equal(t, 7, cfg.SyncLookAheadDays)
	assert.Equal(t, "127.0.0.1:9999", cfg.MCPAddr)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingYAMLFile(t *testing.T) {
	isolateEnv(t)
	t.Setenv(FileEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	isolateEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.EncryptionKey = "too-short"
	assert.Error(t, cfg.Validate())

	cfg.EncryptionKey = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	assert.NoError(t, cfg.Validate())

	cfg.SyncLookAheadDays = 0
	assert.Error(t, cfg.Validate())
}
