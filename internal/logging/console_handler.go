package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// prettyHandler renders log records as short, human-scannable lines for
// interactive terminal use. INFO lines show a subject line (item/action)
// followed by a handful of highlighted fields; WARN/ERROR/DEBUG lines show
// the message plus all attributes, flattened and formatted.
type prettyHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	lvl    *slog.LevelVar
	attrs  []slog.Attr
	groups []string
}

func newPrettyHandler(w io.Writer, lvl *slog.LevelVar) *prettyHandler {
	return &prettyHandler{mu: &sync.Mutex{}, w: w, lvl: lvl}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.lvl.Level()
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return &prettyHandler{
		mu:     h.mu,
		w:      h.w,
		lvl:    h.lvl,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &prettyHandler{
		mu:     h.mu,
		w:      h.w,
		lvl:    h.lvl,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

func (h *prettyHandler) Handle(_ context.Context, record slog.Record) error {
	var flat []kv
	flattenAttrs(&flat, h.groups, h.attrs)
	record.Attrs(func(a slog.Attr) bool {
		flattenAttr(&flat, h.groups, a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case record.Level >= slog.LevelWarn:
		return h.writeDebug(record, flat)
	case record.Level >= slog.LevelInfo:
		return h.writeInfo(record, flat)
	default:
		return h.writeDebug(record, flat)
	}
}

func (h *prettyHandler) writeInfo(record slog.Record, flat []kv) error {
	itemID := attrValue(flat, FieldItemID)
	action := attrValue(flat, FieldAction)
	component := attrValue(flat, FieldComponent)
	subject := composeSubject(itemID, action)

	fields, hidden := selectInfoFields(flat)
	h.writeLogHeader(record, subject, component)
	for _, f := range fields {
		fmt.Fprintf(h.w, "    %-14s %s\n", f.label+":", f.value)
	}
	if hidden > 0 {
		fmt.Fprintf(h.w, "    (%d more field(s) omitted, set log_format = \"json\" for full detail)\n", hidden)
	}
	return nil
}

func (h *prettyHandler) writeDebug(record slog.Record, flat []kv) error {
	component := attrValue(flat, FieldComponent)
	h.writeLogHeader(record, record.Message, component)
	for _, f := range flat {
		if f.key == FieldComponent {
			continue
		}
		fmt.Fprintf(h.w, "    %-16s %s\n", f.key+":", formatValue(f.value))
	}
	return nil
}

func (h *prettyHandler) writeLogHeader(record slog.Record, subject, component string) {
	ts := formatTimestamp(record.Time)
	level := levelLabel(record.Level)
	switch {
	case subject != "" && component != "":
		fmt.Fprintf(h.w, "%s %-5s [%s] %s\n", ts, level, component, subject)
	case subject != "":
		fmt.Fprintf(h.w, "%s %-5s %s\n", ts, level, subject)
	case component != "":
		fmt.Fprintf(h.w, "%s %-5s [%s] %s\n", ts, level, component, record.Message)
	default:
		fmt.Fprintf(h.w, "%s %-5s %s\n", ts, level, record.Message)
	}
}
