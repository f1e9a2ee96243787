// Package config loads rendezvous settings from the environment, an optional
// .env file and an optional YAML file.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnvVar names the YAML file read before the environment.
const FileEnvVar = "RENDEZVOUS_CONFIG"

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv        string
	LogLevel      string
	LogFormat     string
	UserID        string
	EncryptionKey string

	// Database
	DatabaseURL      string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis enables the shared reconcile lock when set.
	RedisURL string

	// RabbitMQ enables domain event publishing when set.
	RabbitMQURL string

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxRetentionDays    int
	OutboxProcessorEnabled bool

	// Worker
	WorkerHealthAddr string

	// OAuth clients
	GoogleClientID        string
	GoogleClientSecret    string
	MicrosoftClientID     string
	MicrosoftClientSecret string
	MicrosoftTenant       string
	OAuthRedirectURL      string
	OAuthScopes           string

	// Sync
	SyncSchedule          string
	SyncLookBehindDays    int
	SyncLookAheadDays     int
	SyncFullResync        time.Duration
	SyncStaleAfter        time.Duration
	SyncConcurrency       int
	ProviderFetchTimeout  time.Duration
	TokenRefreshThreshold time.Duration
	SyncNotifyChannel     string
	ICSWatchEnabled       bool

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load reads configuration. Precedence: environment (including .env), then
// the YAML file named by RENDEZVOUS_CONFIG, then defaults.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	file, err := readFile(os.Getenv(FileEnvVar))
	if err != nil {
		return nil, err
	}
	src := source{file: file}

	cfg := &Config{
		AppEnv:        src.getEnv("APP_ENV", "development"),
		LogLevel:      src.getEnv("LOG_LEVEL", "info"),
		LogFormat:     src.getEnv("LOG_FORMAT", ""),
		UserID:        src.getEnv("RENDEZVOUS_USER_ID", "00000000-0000-0000-0000-000000000001"),
		EncryptionKey: src.getEnv("ENCRYPTION_KEY", ""),

		DatabaseURL:      src.getEnv("DATABASE_URL", ""),
		SQLitePath:       src.getEnv("SQLITE_PATH", ""),
		DatabaseMaxConns: src.getIntEnv("DATABASE_MAX_CONNS", 10),

		RedisURL:    src.getEnv("REDIS_URL", ""),
		RabbitMQURL: src.getEnv("RABBITMQ_URL", ""),

		OutboxPollInterval:     src.getDurationEnv("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:        src.getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       src.getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxRetentionDays:    src.getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxProcessorEnabled: src.getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		WorkerHealthAddr: "0.0.0.0:" + src.getEnv("HEALTH_PORT", "8081"),

		GoogleClientID:        src.getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    src.getEnv("GOOGLE_CLIENT_SECRET", ""),
		MicrosoftClientID:     src.getEnv("MICROSOFT_CLIENT_ID", ""),
		MicrosoftClientSecret: src.getEnv("MICROSOFT_CLIENT_SECRET", ""),
		MicrosoftTenant:       src.getEnv("MICROSOFT_TENANT", "common"),
		OAuthRedirectURL:      src.getEnv("OAUTH_REDIRECT_URL", "http://localhost:8085/callback"),
		OAuthScopes:           src.getEnv("OAUTH_SCOPES", ""),

		SyncSchedule:          src.getEnv("SYNC_SCHEDULE", "@every 6h"),
		SyncLookBehindDays:    src.getIntEnv("SYNC_LOOKBEHIND_DAYS", 1),
		SyncLookAheadDays:     src.getIntEnv("SYNC_LOOKAHEAD_DAYS", 30),
		SyncFullResync:        src.getDurationEnv("SYNC_FULL_RESYNC_INTERVAL", 24*time.Hour),
		SyncStaleAfter:        src.getDurationEnv("SYNC_STALE_AFTER", 6*time.Hour),
		SyncConcurrency:       src.getIntEnv("SYNC_CONCURRENCY", 4),
		ProviderFetchTimeout:  src.getDurationEnv("PROVIDER_FETCH_TIMEOUT", 30*time.Second),
		TokenRefreshThreshold: src.getDurationEnv("TOKEN_REFRESH_THRESHOLD", 5*time.Minute),
		SyncNotifyChannel:     src.getEnv("SYNC_NOTIFY_CHANNEL", "calendar_sync_requests"),
		ICSWatchEnabled:       src.getBoolEnv("ICS_WATCH_ENABLED", true),

		MCPAddr:      src.getEnv("MCP_ADDR", "127.0.0.1:8082"),
		MCPAuthToken: src.getEnv("MCP_AUTH_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.SyncLookBehindDays < 0 || c.SyncLookAheadDays <= 0 {
		return fmt.Errorf("invalid sync window: lookbehind %d days, lookahead %d days",
			c.SyncLookBehindDays, c.SyncLookAheadDays)
	}
	if c.ProviderFetchTimeout <= 0 {
		return fmt.Errorf("PROVIDER_FETCH_TIMEOUT must be positive")
	}
	if c.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(c.EncryptionKey))
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY must be base64: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LookBehind returns the sync look-behind as a duration.
func (c *Config) LookBehind() time.Duration {
	return time.Duration(c.SyncLookBehindDays) * 24 * time.Hour
}

// LookAhead returns the sync look-ahead as a duration.
func (c *Config) LookAhead() time.Duration {
	return time.Duration(c.SyncLookAheadDays) * 24 * time.Hour
}

// readFile loads a flat YAML map. Keys are matched case-insensitively
// against the environment variable names.
func readFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	values := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return values, nil
}

type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getIntEnv(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (s source) getBoolEnv(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
