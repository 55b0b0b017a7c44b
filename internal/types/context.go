package types

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	cycleIDKey contextKey = "cycle_id"
	loggerKey  contextKey = "logger"
)

// WithCycleID stores the sampling cycle ID in the context.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// GetCycleID retrieves the sampling cycle ID from the context.
func GetCycleID(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey).(string)
	return id
}

// WithLogger stores a cycle-scoped logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext returns the logger stored by WithLogger, or fallback when
// none is present. A nil fallback resolves to slog.Default().
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok && l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
