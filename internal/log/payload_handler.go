package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// MaxValueLen is the longest string attribute value logged unabridged.
const MaxValueLen = 96

// payloadKeys are attribute keys whose values are raw probe data.
var payloadKeys = map[string]bool{
	"input":   true,
	"payload": true,
	"buffer":  true,
	"data":    true,
	"argv":    true,
	"cmdline": true,
}

// PayloadHandler wraps an slog.Handler and makes payload attributes safe to
// print. See the package documentation for the rules.
type PayloadHandler struct {
	// handler is the underlying slog handler that receives rewritten records.
	handler slog.Handler
}

// NewPayloadHandler creates a PayloadHandler wrapping handler. If handler is
// nil, slog.Default().Handler() is used.
func NewPayloadHandler(handler slog.Handler) *PayloadHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &PayloadHandler{handler: handler}
}

// Enabled delegates to the underlying handler.
func (h *PayloadHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle rewrites the record's attributes and passes it on.
func (h *PayloadHandler) Handle(ctx context.Context, r slog.Record) error {
	cleaned := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		cleaned.AddAttrs(cleanAttr(a))
		return true
	})
	return h.handler.Handle(ctx, cleaned)
}

// WithAttrs returns a new handler with the given attributes, rewritten, added.
func (h *PayloadHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cleaned := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		cleaned[i] = cleanAttr(a)
	}
	return &PayloadHandler{handler: h.handler.WithAttrs(cleaned)}
}

// WithGroup returns a new handler with the given group name.
func (h *PayloadHandler) WithGroup(name string) slog.Handler {
	return &PayloadHandler{handler: h.handler.WithGroup(name)}
}

// cleanAttr rewrites a single attribute, recursing into groups.
func cleanAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()

	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		cleaned := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			cleaned[i] = cleanAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(cleaned...)}
	}

	var s string
	switch {
	case a.Value.Kind() == slog.KindString:
		s = a.Value.String()
	case payloadKeys[strings.ToLower(a.Key)] && a.Value.Kind() == slog.KindAny:
		b, ok := a.Value.Any().([]byte)
		if !ok {
			return a
		}
		s = string(b)
	default:
		return a
	}

	if payloadKeys[strings.ToLower(a.Key)] {
		s = Escape(s)
	}
	return slog.String(a.Key, Truncate(s, MaxValueLen))
}

// Escape replaces control bytes, backslashes and bytes outside printable
// ASCII with Go-style escapes.
func Escape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		b := s[i]
		switch {
		case b == '\\':
			sb.WriteString(`\\`)
		case b == '\n':
			sb.WriteString(`\n`)
		case b == '\t':
			sb.WriteString(`\t`)
		case b == 0:
			sb.WriteString(`\0`)
		case b < 0x20 || b >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, b)
		default:
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// Truncate cuts s to n bytes and notes how many were dropped.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...(+%d bytes)", s[:n], len(s)-n)
}

// NewLogger creates a text slog.Logger that makes payloads safe to print.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - verbose: If true, sets log level to Debug; otherwise Warn
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPayloadHandler(slog.NewTextHandler(w, handlerOptions(verbose))))
}

// NewJSONLogger is like NewLogger with JSON output.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewPayloadHandler(slog.NewJSONHandler(w, handlerOptions(verbose))))
}

func handlerOptions(verbose bool) *slog.HandlerOptions {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return &slog.HandlerOptions{Level: level}
}
