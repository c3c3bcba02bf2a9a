// Package logging provides structured JSON logging with sanitization.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// sensitiveKeys are attribute key fragments whose values are never logged.
var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"key",
	"credential",
	"passphrase",
	"auth",
}

const redacted = "[REDACTED]"

// level is shared by every logger installed with Setup so it can be changed
// while the process runs.
var level = new(slog.LevelVar)

// SanitizingHandler wraps a slog.Handler and redacts sensitive attributes.
type SanitizingHandler struct {
	next     slog.Handler
	sanitize bool
}

// NewSanitizingHandler wraps next. With sanitize false it is a pass-through.
func NewSanitizingHandler(next slog.Handler, sanitize bool) *SanitizingHandler {
	return &SanitizingHandler{next: next, sanitize: sanitize}
}

// Enabled implements slog.Handler.
func (h *SanitizingHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

// Handle implements slog.Handler.
func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.sanitize || r.NumAttrs() == 0 {
		return h.next.Handle(ctx, r)
	}

	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redact(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

// WithAttrs implements slog.Handler.
func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.sanitize {
		clean := make([]slog.Attr, len(attrs))
		for i, a := range attrs {
			clean[i] = redact(a)
		}
		attrs = clean
	}
	return &SanitizingHandler{next: h.next.WithAttrs(attrs), sanitize: h.sanitize}
}

// WithGroup implements slog.Handler.
func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name), sanitize: h.sanitize}
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// redact replaces sensitive values, descending into groups.
func redact(a slog.Attr) slog.Attr {
	if isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() != slog.KindGroup {
		return a
	}
	group := a.Value.Group()
	clean := make([]slog.Attr, len(group))
	for i, g := range group {
		clean[i] = redact(g)
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels. Other
// values map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup installs a JSON logger on w (stderr when nil) as the slog default.
func Setup(w io.Writer, lvl string, sanitize bool) {
	if w == nil {
		w = os.Stderr
	}
	level.Set(ParseLevel(lvl))
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(NewSanitizingHandler(h, sanitize)))
}

// SetLevel changes the level of loggers installed by Setup.
func SetLevel(lvl string) {
	level.Set(ParseLevel(lvl))
}
