package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
)

// basic global logger, JSON to stderr. Stdout belongs to the terminal client.
var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

func Logger() *slog.Logger {
	return logger
}

// Setup replaces the global logger. format is "json" or "text"; level is one
// of debug, info, warn, error.
func Setup(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	logger = slog.New(h)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

// WithRequestID stores a request_id in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestID returns the request_id stored in ctx, if any.
func RequestID(ctx context.Context) string {
	reqID, _ := ctx.Value(ctxKeyRequestID).(string)
	return reqID
}

// LoggerFromContext adds request_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	reqID := RequestID(ctx)
	if reqID == "" {
		return logger
	}
	return logger.With("request_id", reqID)
}
