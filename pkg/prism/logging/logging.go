package logging

import (
	"context"
	"encoding/hex"
	"log/slog"
)

const (
	redactedPlaceholder = "[redacted]"
	fingerprintChars    = 16
)

// Logger is the leveled, context-aware sink used by prism components.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}

// New wraps logger. A nil logger binds to slog.Default().
func New(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return handlerLogger{l: logger}
}

// Discard returns a Logger that drops every record.
func Discard() Logger {
	return handlerLogger{l: slog.New(slog.DiscardHandler)}
}

type handlerLogger struct {
	l *slog.Logger
}

func (h handlerLogger) Debug(ctx context.Context, msg string, args ...any) {
	h.l.Log(ctx, slog.LevelDebug, msg, args...)
}

func (h handlerLogger) Info(ctx context.Context, msg string, args ...any) {
	h.l.Log(ctx, slog.LevelInfo, msg, args...)
}

func (h handlerLogger) Warn(ctx context.Context, msg string, args ...any) {
	h.l.Log(ctx, slog.LevelWarn, msg, args...)
}

func (h handlerLogger) Error(ctx context.Context, msg string, args ...any) {
	h.l.Log(ctx, slog.LevelError, msg, args...)
}

func (h handlerLogger) With(args ...any) Logger {
	return handlerLogger{l: h.l.With(args...)}
}

// Redacted stands in for an attribute whose value must never be written.
func Redacted(key string) slog.Attr {
	return slog.String(key, redactedPlaceholder)
}

// Placeholder is the value Redacted writes.
func Placeholder() string { return redactedPlaceholder }

// Fingerprint renders the leading bytes of a key fingerprint, enough to
// correlate log lines without printing the full value.
func Fingerprint(key string, fp []byte) slog.Attr {
	s := hex.EncodeToString(fp)
	if len(s) > fingerprintChars {
		s = s[:fingerprintChars]
	}
	return slog.String(key, s)
}
