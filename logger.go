package knnmon

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with knnmon-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithEpoch adds an epoch field to the logger.
func (l *Logger) WithEpoch(epoch int) *Logger {
	return &Logger{
		Logger: l.Logger.With("epoch", epoch),
	}
}

// WithK adds a k (neighbor count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogBankBuild logs an epoch-end bank rebuild.
func (l *Logger) LogBankBuild(ctx context.Context, epoch, count, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "feature bank build failed",
			"epoch", epoch,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "feature bank published",
			"epoch", epoch,
			"count", count,
			"dimension", dimension,
		)
	}
}

// LogValidation logs the end of a validation pass.
func (l *Logger) LogValidation(ctx context.Context, epoch int, accuracy, maxAccuracy float64, samples int) {
	l.InfoContext(ctx, "validation pass completed",
		"epoch", epoch,
		"accuracy", accuracy,
		"max_accuracy", maxAccuracy,
		"samples", samples,
	)
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"name", name,
		)
	}
}

// LogRestore logs a bank restore from a snapshot.
func (l *Logger) LogRestore(ctx context.Context, name string, epoch int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "bank restore failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "bank restored",
			"name", name,
			"epoch", epoch,
		)
	}
}
