package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// contextKey is a type for context keys to avoid collisions
type contextKey string

const requestIDKey contextKey = "requestID"

var output io.Writer = os.Stderr

var logger = slog.New(NewCompactHandler(output, &slog.HandlerOptions{
	Level: slog.LevelInfo,
}))

// LevelTrace is below debug and only used while debugging the tool itself
const LevelTrace = slog.LevelDebug - 4

// SetOutput redirects log output. Logs go to stderr by default so that
// generated scripts can be written to stdout.
func SetOutput(w io.Writer) {
	output = w
}

// SetLevel changes the logging level
func SetLevel(level slog.Level) {
	handler := NewCompactHandler(output, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(handler)
}

// SetJSONOutput switches to JSON format output
func SetJSONOutput(level slog.Level) {
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(handler)
}

// New returns a logger tagged with the given component name. It captures
// the current handler, so call it after SetLevel/SetJSONOutput.
func New(component string) *slog.Logger {
	return logger.With("component", component)
}

// ParseLevel maps a verbosity name or a -v count to a level.
// A non-empty name wins over the count.
func ParseLevel(name string, verbose int) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "":
	default:
		return slog.LevelInfo, fmt.Errorf("unknown verbosity %q", name)
	}

	switch {
	case verbose >= 2:
		return LevelTrace, nil
	case verbose == 1:
		return slog.LevelDebug, nil
	}
	return slog.LevelInfo, nil
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// Helper function to add request ID to log attributes if present
func withRequestID(ctx context.Context, args []any) []any {
	requestID := GetRequestID(ctx)
	if requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

// Trace logs at TRACE level (very verbose, debug-time only)
func Trace(msg string, args ...any) {
	logger.Log(context.Background(), LevelTrace, msg, args...)
}

// TraceContext logs at TRACE level with context
func TraceContext(ctx context.Context, msg string, args ...any) {
	logger.Log(ctx, LevelTrace, msg, withRequestID(ctx, args)...)
}

// Debug logs at DEBUG level (internal component behavior)
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// DebugContext logs at DEBUG level with context
func DebugContext(ctx context.Context, msg string, args ...any) {
	logger.DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

// Info logs at INFO level (user-facing operations)
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// InfoContext logs at INFO level with context
func InfoContext(ctx context.Context, msg string, args ...any) {
	logger.InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn logs at WARN level (should be monitored)
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// WarnContext logs at WARN level with context
func WarnContext(ctx context.Context, msg string, args ...any) {
	logger.WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

// Error logs at ERROR level (logical bugs that shouldn't happen)
func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}

// ErrorContext logs at ERROR level with context
func ErrorContext(ctx context.Context, msg string, args ...any) {
	logger.ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}

// Fatal logs at ERROR level and exits (unrecoverable bugs)
func Fatal(msg string, args ...any) {
	logger.Error(msg, args...)
	os.Exit(1)
}

// FatalContext logs at ERROR level with context and exits
func FatalContext(ctx context.Context, msg string, args ...any) {
	logger.ErrorContext(ctx, msg, withRequestID(ctx, args)...)
	os.Exit(1)
}
