package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
// These are the keys a site profile or HTTP layer is likely to log.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"cookie":              true,
	"set-cookie":          true,
	"proxy-authorization": true,
	"x-api-key":           true,
	"x-auth-token":        true,

	"password":     true,
	"secret":       true,
	"token":        true,
	"api_key":      true,
	"apikey":       true,
	"access_token": true,

	"session":    true,
	"session_id": true,
	"sessionid":  true,
}

// sensitivePatterns contains regexes that indicate credential values.
// Values matching these are masked regardless of the attribute key.
var sensitivePatterns = []*regexp.Regexp{
	// Bearer tokens
	regexp.MustCompile(`(?i)^bearer\s+.+`),

	// Basic auth
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),

	// JWT tokens
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
}

// MaskValue is the string used to replace credential values.
const MaskValue = "***REDACTED***"

// MaskHandler wraps an slog.Handler and masks credential-bearing attribute
// values before passing records to the underlying handler.
//
// Design decision: We use a handler wrapper rather than a custom logger
// because it integrates with standard slog APIs and works with any
// underlying handler (text, JSON, etc.).
type MaskHandler struct {
	handler slog.Handler
}

// NewMaskHandler creates a MaskHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewMaskHandler(handler slog.Handler) *MaskHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &MaskHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *MaskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and passes it on.
func (h *MaskHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added,
// masked first.
func (h *MaskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &MaskHandler{handler: h.handler.WithAttrs(maskedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *MaskHandler) WithGroup(name string) slog.Handler {
	return &MaskHandler{handler: h.handler.WithGroup(name)}
}

// maskAttr masks a single attribute, recursively handling groups.
func (h *MaskHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			maskedAttrs[i] = h.maskAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString && isSensitiveValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}

	return a
}

// containsSensitiveKeyword checks if the key contains credential keywords.
// The bare "key" keyword is intentionally excluded; it causes false
// positives on attributes like "dedup_key".
func containsSensitiveKeyword(key string) bool {
	for _, keyword := range []string{"password", "secret", "token", "auth", "credential"} {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks if a value matches credential patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewLogger creates a *slog.Logger with text output and credential masking.
// When verbose is true the level is Debug, otherwise Warn.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	textHandler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewMaskHandler(textHandler))
}

// NewJSONLogger creates a *slog.Logger with JSON output and credential
// masking. Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewMaskHandler(jsonHandler))
}
