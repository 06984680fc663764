package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// prettyHandler renders records as
//
//	2024-01-02 15:04:05 INFO [component] day_1 (stage) – message key=value
type prettyHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

type field struct {
	key   string
	value slog.Value
}

// header holds the attributes lifted out of key=value pairs into the
// line prefix.
type header struct {
	component string
	day       string
	stage     string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &prettyHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	if record.Level < h.level.Level() {
		return nil
	}

	fields := make([]field, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		fields = appendField(fields, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.groups, attr)
		return true
	})
	head, rest := splitHeader(fields)

	message := strings.TrimSpace(record.Message)
	if message == "" {
		message = "(no message)"
	}

	var buf bytes.Buffer
	buf.Grow(128 + len(rest)*32)
	buf.WriteString(consoleTime(record.Time))
	buf.WriteByte(' ')
	buf.WriteString(levelLabel(record.Level))
	if head.component != "" {
		buf.WriteString(" [" + head.component + "]")
	}
	if subject := head.subject(); subject != "" {
		buf.WriteString(" " + subject)
	}
	buf.WriteString(" – ")
	buf.WriteString(message)
	if h.addSource {
		if src := record.Source(); src != nil {
			buf.WriteString(" [" + filepath.Base(src.File) + ":" + strconv.Itoa(src.Line) + "]")
		}
	}
	for _, f := range rest {
		buf.WriteString(" " + f.key + "=")
		buf.WriteString(quotedValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

// splitHeader pulls the first component, day and stage values into the
// header. Remaining keys keep first-seen order with later values winning.
func splitHeader(fields []field) (header, []field) {
	var head header
	rest := make([]field, 0, len(fields))
	positions := make(map[string]int, len(fields))
	for _, f := range fields {
		var slot *string
		switch f.key {
		case FieldComponent:
			slot = &head.component
		case FieldDay:
			slot = &head.day
		case FieldStage:
			slot = &head.stage
		case "":
			continue
		}
		if slot != nil {
			if *slot == "" {
				*slot = strings.TrimSpace(plainValue(f.value))
			}
			continue
		}
		if pos, ok := positions[f.key]; ok {
			rest[pos].value = f.value
			continue
		}
		positions[f.key] = len(rest)
		rest = append(rest, f)
	}
	return head, rest
}

func (hd header) subject() string {
	switch {
	case hd.day != "" && hd.stage != "":
		return hd.day + " (" + hd.stage + ")"
	case hd.day != "":
		return hd.day
	default:
		return hd.stage
	}
}

func appendField(dst []field, prefix []string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	attr.Value = attr.Value.Resolve()
	path := prefix
	if attr.Key != "" {
		path = append(append([]string(nil), prefix...), attr.Key)
	}
	if attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			dst = appendField(dst, path, member)
		}
		return dst
	}
	return append(dst, field{key: strings.Join(path, "."), value: attr.Value})
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *prettyHandler) clone() *prettyHandler {
	next := *h
	next.attrs = append([]slog.Attr(nil), h.attrs...)
	next.groups = append([]string(nil), h.groups...)
	return &next
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
