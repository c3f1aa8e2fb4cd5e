package ioformat

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with field names fixed to this package's
// vocabulary, so every File logs its path/varname consistently
// regardless of which Backend is underneath.
type Logger struct {
	*slog.Logger
}

// NewLogger returns a Logger writing text-formatted logs to stderr at
// level.
func NewLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))}
}

// NoopLogger discards everything; useful in tests that don't want log
// noise but still need a non-nil Logger.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(1000)}))}
}

func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

func (l *Logger) LogOpen(ctx context.Context, path string, mode Mode, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed", "path", path, "mode", mode, "error", err)
		return
	}
	l.InfoContext(ctx, "opened", "path", path, "mode", mode)
}

func (l *Logger) LogPutVar(ctx context.Context, varname string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "put_var failed", "var", varname, "bytes", bytes, "error", err)
		return
	}
	l.DebugContext(ctx, "put_var completed", "var", varname, "bytes", bytes)
}

func (l *Logger) LogGetVar(ctx context.Context, varname string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "get_var failed", "var", varname, "bytes", bytes, "error", err)
		return
	}
	l.DebugContext(ctx, "get_var completed", "var", varname, "bytes", bytes)
}

func (l *Logger) LogSync(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "sync failed", "error", err)
		return
	}
	l.DebugContext(ctx, "synced")
}
