package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns the JSON logger shared by the airwatch binaries.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
}

// ParseLogLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
