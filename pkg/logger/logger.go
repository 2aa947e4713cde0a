// Package logger provides structured logging for novelkit on top of log/slog.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// ContextKey is the type of keys read from a context by FromContext.
type ContextKey string

const (
	NovelIDKey ContextKey = "novel_id"
	BackendKey ContextKey = "backend"
	OpKey      ContextKey = "op"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Init configures the default logger. format is "json" or "text".
func Init(level, format string) *slog.Logger {
	return InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	return l
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Default returns the default logger, initializing it on first use.
func Default() *slog.Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l == nil {
		return Init("info", "text")
	}
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// WithContext stores a log attribute in ctx.
func WithContext(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// FromContext returns base enriched with the attributes stored in ctx.
// A nil base means the default logger.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	l := base
	if l == nil {
		l = Default()
	}
	for _, key := range []ContextKey{NovelIDKey, BackendKey, OpKey} {
		if v := ctx.Value(key); v != nil {
			l = l.With(string(key), v)
		}
	}
	return l
}
