package app

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger: JSON when LOG_FORMAT=json, text
// otherwise, at the level named by LOG_LEVEL.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil {
		opts.Level = parseLogLevel(cfg.LogLevel)
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// parseLogLevel maps a LOG_LEVEL string to a slog level. Unknown values
// fall back to info rather than failing startup.
func parseLogLevel(level string) slog.Level {
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
