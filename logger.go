package hnf

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with archive-specific helpers so reads and
// writes log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler logs
// text at info level to stderr.
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

// NewJSONLogger creates a Logger that writes JSON records to stderr.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewTextLogger creates a Logger that writes human-readable records to stderr.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithPath adds the archive path to every record.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogRead logs the outcome of a read call.
func (l *Logger) LogRead(ctx context.Context, requested, decoded, failed int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "read failed",
			"requested", requested,
			"error", err,
		)
	case failed > 0:
		l.WarnContext(ctx, "read completed with failures",
			"requested", requested,
			"decoded", decoded,
			"failed", failed,
		)
	default:
		l.DebugContext(ctx, "read completed",
			"requested", requested,
			"decoded", decoded,
		)
	}
}

// LogWrite logs the outcome of writing one neuron.
func (l *Logger) LogWrite(ctx context.Context, id string, kind Kind, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"id", id,
			"kind", kind.String(),
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "write completed",
		"id", id,
		"kind", kind.String(),
	)
}

// LogNeuronFailure logs a neuron skipped under ErrorModeWarn.
func (l *Logger) LogNeuronFailure(ctx context.Context, id string, err error) {
	l.WarnContext(ctx, "neuron skipped",
		"id", id,
		"error", err,
	)
}
