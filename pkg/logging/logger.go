package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

type contextKey string

const requestIDKey contextKey = "requestID"

// LevelTrace is below debug and used for per-input resolution details.
const LevelTrace = slog.LevelDebug - 4

var logger atomic.Pointer[slog.Logger]

func init() {
	// Stdout carries compiled graphs in the CLI, so logs go to stderr.
	Configure(os.Stderr, slog.LevelInfo, false)
}

// Configure replaces the package logger.
func Configure(w io.Writer, level slog.Level, json bool) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = NewCompactHandler(w, opts)
	}
	logger.Store(slog.New(h))
}

// SetLevel changes the logging level, keeping compact output on stderr.
func SetLevel(level slog.Level) {
	Configure(os.Stderr, level, false)
}

// SetJSONOutput switches to JSON output on stderr.
func SetJSONOutput(level slog.Level) {
	Configure(os.Stderr, level, true)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return logger.Load()
}

// ParseLevel maps a verbosity name or a count of -v flags to a level. A
// name wins over the count.
func ParseLevel(verbosity string, verboseCount int) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(verbosity)) {
	case "":
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "quiet":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown verbosity %q", verbosity)
	}

	switch {
	case verboseCount >= 2:
		return LevelTrace, nil
	case verboseCount == 1:
		return slog.LevelDebug, nil
	}
	return slog.LevelInfo, nil
}

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func withRequestID(ctx context.Context, args []any) []any {
	if requestID := GetRequestID(ctx); requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Trace logs per-input details of compilation.
func Trace(msg string, args ...any) {
	Logger().Log(context.Background(), LevelTrace, msg, args...)
}

// TraceContext logs at TRACE level with context.
func TraceContext(ctx context.Context, msg string, args ...any) {
	Logger().Log(ctx, LevelTrace, msg, withRequestID(ctx, args)...)
}

// Debug logs internal component behavior.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

// Info logs user-facing operations.
func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// InfoContext logs at INFO level with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	Logger().InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn logs non-fatal problems such as resolution gaps and injection misses.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// WarnContext logs at WARN level with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// ErrorContext logs at ERROR level with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	Logger().ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}

// Fatal logs at ERROR level and exits.
func Fatal(msg string, args ...any) {
	Logger().Error(msg, args...)
	os.Exit(1)
}
