package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrettyJSONHandler is a slog.Handler that prints one indented JSON object
// per record. time, level and msg always come first; attributes follow in
// key order.
//
// Note: this handler is not optimized for throughput.
type PrettyJSONHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool

	attrs  []slog.Attr
	groups []string
}

func NewPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	var level slog.Leveler = slog.LevelInfo
	addSource := false
	if opts != nil {
		if opts.Level != nil {
			level = opts.Level
		}
		addSource = opts.AddSource
	}

	return &PrettyJSONHandler{
		w:         w,
		mu:        &sync.Mutex{},
		level:     level,
		addSource: addSource,
	}
}

func (h *PrettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}

	fields := map[string]any{}
	for _, a := range h.attrs {
		addAttr(fields, h.groups, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(fields, h.groups, a)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString("{\n")
	writeField(&buf, "time", when.Format(time.RFC3339Nano), true)
	writeField(&buf, "level", r.Level.String(), true)
	writeField(&buf, "msg", r.Message, len(fields) > 0 || h.addSource)
	if h.addSource {
		writeField(&buf, "source", sourceFromPC(r.PC), len(fields) > 0)
	}
	if len(fields) > 0 {
		b, err := json.MarshalIndent(fields, "", "  ")
		if err != nil {
			b = []byte(strconv.Quote("!marshal error: " + err.Error()))
			buf.WriteString("  \"attrs\": ")
			buf.Write(b)
		} else {
			// Splice the attribute object's members into the record object.
			inner := bytes.TrimSpace(b)
			inner = bytes.TrimPrefix(inner, []byte("{"))
			inner = bytes.TrimSuffix(inner, []byte("}"))
			buf.Write(bytes.Trim(inner, "\n"))
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func writeField(buf *bytes.Buffer, key, value string, more bool) {
	buf.WriteString("  ")
	buf.WriteString(strconv.Quote(key))
	buf.WriteString(": ")
	b, _ := json.Marshal(value)
	buf.Write(b)
	if more {
		buf.WriteByte(',')
	}
	buf.WriteByte('\n')
}

func (h *PrettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *PrettyJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func addAttr(root map[string]any, groups []string, attr slog.Attr) {
	if attr.Key == "" {
		return
	}
	dst := root
	for _, g := range groups {
		m, ok := dst[g].(map[string]any)
		if !ok {
			m = map[string]any{}
			dst[g] = m
		}
		dst = m
	}
	addAttrToMap(dst, attr)
}

func addAttrToMap(dst map[string]any, attr slog.Attr) {
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		child := map[string]any{}
		for _, ga := range v.Group() {
			if ga.Key != "" {
				addAttrToMap(child, ga)
			}
		}
		dst[attr.Key] = child
		return
	}
	dst[attr.Key] = valueToAny(v)
}

func valueToAny(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.String()
	}
}

func sourceFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
