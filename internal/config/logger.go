package config

import (
	"context"
	"io"
	"log/slog"
)

type loggerKey struct{}

// NewLogger builds a text or JSON slog logger. Verbose enables debug level.
func NewLogger(w io.Writer, lc LogConfig) *slog.Logger {
	level := slog.LevelInfo
	if lc.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// WithLogger stores the logger in ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// GetLogger retrieves the logger from ctx.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
