// Package logger provides the process-wide structured logger used by every
// docrefine package. It wraps log/slog; callers log key/value pairs through
// the package-level functions and the CLI configures the handler once.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// Options configures the logger.
type Options struct {
	Debug  bool      // Enable debug level logging
	Quiet  bool      // Only show errors; wins over Debug
	JSON   bool      // Output as JSON
	Output io.Writer // Output destination (default: stderr)
	// Level sets an explicit minimum level, overriding Debug and Quiet.
	Level *slog.Level
	// Logger replaces the handler entirely; all other options are ignored.
	Logger *slog.Logger
}

// Init replaces the process logger according to opts.
func Init(opts Options) {
	l := opts.Logger
	if l == nil {
		l = build(opts)
	}
	SetLogger(l)
}

func build(opts Options) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case opts.Level != nil:
		level = *opts.Level
	case opts.Quiet:
		level = slog.LevelError
	case opts.Debug:
		level = slog.LevelDebug
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(out, ho))
	}
	return slog.New(slog.NewTextHandler(out, ho))
}

// SetLogger installs l as the process logger, e.g. to route docrefine
// output into an application's own handler.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs at info level.
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs at error level.
func Error(msg string, args ...any) { current().Error(msg, args...) }

// DebugContext logs at debug level with ctx.
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, args...)
}

// InfoContext logs at info level with ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, args...)
}

// WarnContext logs at warn level with ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	current().WarnContext(ctx, msg, args...)
}

// ErrorContext logs at error level with ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, args...)
}

// With returns a child of the current logger carrying args. Later calls to
// Init do not affect loggers already returned.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// Enabled reports whether the current logger emits records at level.
func Enabled(ctx context.Context, level slog.Level) bool {
	return current().Enabled(ctx, level)
}
