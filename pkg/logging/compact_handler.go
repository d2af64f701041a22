package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CompactHandler writes one human readable line per record:
//
//	[LEVEL] HH:MM:SS message | key=value key=value
//
// Attributes bound with WithAttrs are rendered once, when they are bound.
type CompactHandler struct {
	level    slog.Leveler
	mu       *sync.Mutex // shared by every handler derived from the same root
	out      io.Writer
	prefix   string // group path for attributes added later, "a.b."
	rendered []byte // pre-rendered bound attributes, each led by a space
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	h := &CompactHandler{
		level: slog.LevelInfo,
		mu:    &sync.Mutex{},
		out:   w,
	}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

var levelLabels = map[slog.Level]string{
	LevelTrace:      "[TRACE] ",
	slog.LevelDebug: "[DEBUG] ",
	slog.LevelInfo:  "[INFO]  ",
	slog.LevelWarn:  "[WARN]  ",
	slog.LevelError: "[ERROR] ",
}

func levelLabel(l slog.Level) string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return fmt.Sprintf("[%-5s] ", l.String())
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 256+len(h.rendered))
	buf = append(buf, levelLabel(r.Level)...)
	buf = r.Time.AppendFormat(buf, "15:04:05")
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	attrs := h.rendered
	if r.NumAttrs() > 0 {
		attrs = append([]byte(nil), h.rendered...)
		r.Attrs(func(a slog.Attr) bool {
			attrs = appendAttr(attrs, h.prefix, a)
			return true
		})
	}
	if len(attrs) > 0 {
		buf = append(buf, " |"...)
		buf = append(buf, attrs...)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.rendered = append([]byte(nil), h.rendered...)
	for _, a := range attrs {
		next.rendered = appendAttr(next.rendered, h.prefix, a)
	}
	return &next
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// appendAttr renders " key=value", expanding groups into dotted keys
func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}

	if a.Value.Kind() == slog.KindGroup {
		group := prefix
		if a.Key != "" {
			group += a.Key + "."
		}
		for _, member := range a.Value.Group() {
			buf = appendAttr(buf, group, member)
		}
		return buf
	}

	buf = append(buf, ' ')
	switch a.Key {
	case "requestID":
		// the first eight characters are enough to follow a request
		if s := a.Value.String(); len(s) > 8 {
			return append(append(buf, "req="...), s[:8]...)
		}
	case "durationMs":
		return append(append(append(buf, "duration="...), a.Value.String()...), "ms"...)
	case "error":
		return strconv.AppendQuote(append(buf, "error="...), a.Value.String())
	}

	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if needsQuoting(s) {
			return strconv.AppendQuote(buf, s)
		}
		return append(buf, s...)
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	default:
		return fmt.Appendf(buf, "%v", v.Any())
	}
}

func needsQuoting(s string) bool {
	return s == "" || strings.ContainsAny(s, " \t\n\"=")
}
