package edix

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with edix-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDimension adds a search dimension field to the logger.
func (l *Logger) WithDimension(name string) *Logger {
	return &Logger{Logger: l.Logger.With("dimension", name)}
}

// WithBucket adds a bucket-id field to the logger.
func (l *Logger) WithBucket(prefix byte) *Logger {
	return &Logger{Logger: l.Logger.With("bucket", prefix)}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, dimension, query string, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"dimension", dimension,
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"dimension", dimension,
			"query", query,
			"results", results,
		)
	}
}

// LogLookup logs a full query-to-records pipeline run.
func (l *Logger) LogLookup(ctx context.Context, dimension, query string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "lookup failed",
			"dimension", dimension,
			"query", query,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "lookup completed",
			"dimension", dimension,
			"query", query,
			"records", records,
		)
	}
}

// LogLoad logs a blob load.
func (l *Logger) LogLoad(ctx context.Context, name string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"blob", name,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "load completed",
			"blob", name,
			"bytes", bytes,
		)
	}
}
