package app

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"Info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" debug ", slog.LevelDebug},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, parseLogLevel(tc.in), "level %q", tc.in)
	}
}

func TestNewLoggerHonorsLevel(t *testing.T) {
	logger := NewLogger(&Config{LogFormat: "json", LogLevel: "warn"})
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	// Nil config keeps the info default.
	logger = NewLogger(nil)
	require.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
