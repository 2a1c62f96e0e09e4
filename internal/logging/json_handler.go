package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// jsonHandler writes the line format internal/logs parses back. Records
// logged with a context carry that context's correlation id and subject even
// when the logger was never bound through WithContext.
type jsonHandler struct {
	inner slog.Handler
	bound map[string]bool
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	}
	return &jsonHandler{inner: slog.NewJSONHandler(w, &opts)}
}

func replaceJSONAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	return attr
}

func (h *jsonHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *jsonHandler) Handle(ctx context.Context, record slog.Record) error {
	if extra := h.missingContextFields(ctx, record); len(extra) > 0 {
		record = record.Clone()
		record.AddAttrs(extra...)
	}
	return h.inner.Handle(ctx, record)
}

func (h *jsonHandler) missingContextFields(ctx context.Context, record slog.Record) []slog.Attr {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return nil
	}
	present := make(map[string]bool, record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		present[a.Key] = true
		return true
	})
	extra := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		if !h.bound[f.Key] && !present[f.Key] {
			extra = append(extra, f)
		}
	}
	return extra
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]bool, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = true
	}
	for _, a := range attrs {
		bound[a.Key] = true
	}
	return &jsonHandler{inner: h.inner.WithAttrs(attrs), bound: bound}
}

// WithGroup drops context stamping; fields added after a group would nest
// under it.
func (h *jsonHandler) WithGroup(name string) slog.Handler {
	return h.inner.WithGroup(name)
}
