// Package observability holds the logging, metrics, health and
// correlation helpers shared by the rendezvous binaries.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level     slog.Level
	JSON      bool
	Output    io.Writer // os.Stderr when nil
	AddSource bool
	Service   string
	Version   string
}

// NewLogger returns a logger that stamps every record with the service,
// its version and the correlation and user IDs carried by the context.
func NewLogger(cfg LogConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}

	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.JSON {
		handler = slog.NewJSONHandler(out, opts)
	}

	var attrs []slog.Attr
	if cfg.Service != "" {
		attrs = append(attrs, slog.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return slog.New(&attributeHandler{handler: handler, attrs: attrs})
}

// LoggerFromEnv is the bootstrap logger used before the config is loaded.
func LoggerFromEnv(service string) *slog.Logger {
	return NewLogger(ConfigFor(service, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Getenv("RENDEZVOUS_VERSION")))
}

// ConfigFor maps the LOG_* settings to a LogConfig. Production logs JSON to
// stdout with source locations; elsewhere text goes to stderr. An explicit
// format wins over the environment default.
func ConfigFor(service, appEnv, level, format, version string) LogConfig {
	cfg := LogConfig{
		Level:   parseLevel(level),
		Service: service,
		Version: version,
	}
	if cfg.Service == "" {
		cfg.Service = "rendezvous"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if appEnv == "production" {
		cfg.JSON = true
		cfg.Output = os.Stdout
		cfg.AddSource = true
	}
	switch strings.ToLower(format) {
	case "json":
		cfg.JSON = true
	case "text":
		cfg.JSON = false
	}
	return cfg
}

// parseLevel accepts debug, info, warn(ing) and error; anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// attributeHandler adds the service attributes and the context's
// correlation and user IDs. A user_id already attached with With wins.
type attributeHandler struct {
	handler   slog.Handler
	attrs     []slog.Attr
	hasUserID bool
}

func (h *attributeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *attributeHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs...)
	if corrID := CorrelationIDFromContext(ctx); corrID != "" {
		r.AddAttrs(slog.String(CorrelationIDKey, corrID))
	}
	if userID, ok := UserIDFromContext(ctx); ok && !h.hasUserID {
		r.AddAttrs(slog.String(UserIDKey, userID.String()))
	}

	return h.handler.Handle(ctx, r)
}

func (h *attributeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hasUserID := h.hasUserID
	for _, a := range attrs {
		if a.Key == UserIDKey {
			hasUserID = true
		}
	}
	return &attributeHandler{handler: h.handler.WithAttrs(attrs), attrs: h.attrs, hasUserID: hasUserID}
}

func (h *attributeHandler) WithGroup(name string) slog.Handler {
	return &attributeHandler{handler: h.handler.WithGroup(name), attrs: h.attrs, hasUserID: h.hasUserID}
}

// LogOperation creates a logger with operation-specific attributes.
func LogOperation(logger *slog.Logger, operation string, attrs ...any) *slog.Logger {
	args := append([]any{"operation", operation}, attrs...)
	return logger.With(args...)
}
