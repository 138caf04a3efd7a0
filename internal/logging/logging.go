// Package logging holds the slog conventions shared by every mouzamap
// package: snake_case operation names, an "error" attribute for failures,
// and a request-scoped logger carried in the context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type contextKey struct{}

// New builds a logger writing to w. format is "json" or "text"; level is one
// of debug, info, warn, error.
func New(w io.Writer, format, level string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog.Level. Unknown names are Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or slog.Default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// LogOperation records a completed step at info level.
func LogOperation(logger *slog.Logger, operation string, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("operation", operation))
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Info(operation, args...)
}

// LogError records msg with err at error level.
func LogError(logger *slog.Logger, msg string, err error, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	for _, a := range attrs {
		args = append(args, a)
	}
	logger.Error(msg, args...)
}

// LogHTTPRequest records one served request. Server errors log at error
// level, client errors at warn.
func LogHTTPRequest(logger *slog.Logger, method, path string, status int, durationMs float64, attrs ...slog.Attr) {
	if logger == nil {
		return
	}
	args := []any{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("duration_ms", durationMs),
	}
	for _, a := range attrs {
		args = append(args, a)
	}

	switch {
	case status >= 500:
		logger.Error("http_request", args...)
	case status >= 400:
		logger.Warn("http_request", args...)
	default:
		logger.Info("http_request", args...)
	}
}

// SafeCloseWithLogging closes c and logs, rather than returns, any error.
// It is meant for defer statements.
func SafeCloseWithLogging(c io.Closer, logger *slog.Logger, resource string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		LogError(logger, "failed to close resource", err, slog.String("resource", resource))
	}
}
