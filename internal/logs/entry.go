package logs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"covercache/internal/logging"
)

// Entry is one parsed JSON log record.
type Entry struct {
	Time          time.Time
	Level         slog.Level
	Message       string
	Component     string
	Subject       string
	CorrelationID string
	Attrs         map[string]any
}

var reservedKeys = map[string]struct{}{
	"ts":                       {},
	"level":                    {},
	"msg":                      {},
	logging.FieldComponent:     {},
	logging.FieldSubject:       {},
	logging.FieldCorrelationID: {},
}

// ParseLine decodes a JSON log line. Lines that are not JSON objects report
// ok=false.
func ParseLine(line string) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Entry{}, false
	}
	e := Entry{
		Message:       stringField(raw, "msg"),
		Component:     stringField(raw, logging.FieldComponent),
		Subject:       stringField(raw, logging.FieldSubject),
		CorrelationID: stringField(raw, logging.FieldCorrelationID),
		Attrs:         make(map[string]any),
	}
	if ts, err := time.Parse(time.RFC3339, stringField(raw, "ts")); err == nil {
		e.Time = ts
	}
	if err := e.Level.UnmarshalText([]byte(stringField(raw, "level"))); err != nil {
		e.Level = slog.LevelInfo
	}
	for k, v := range raw {
		if _, reserved := reservedKeys[k]; !reserved {
			e.Attrs[k] = v
		}
	}
	return e, true
}

func stringField(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

// Filter narrows entries. Zero fields match everything.
type Filter struct {
	MinLevel      slog.Level
	Component     string
	CorrelationID string
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	if e.Level < f.MinLevel {
		return false
	}
	if f.Component != "" && !strings.EqualFold(f.Component, e.Component) {
		return false
	}
	if f.CorrelationID != "" && f.CorrelationID != e.CorrelationID {
		return false
	}
	return true
}

// Format renders e as a single console line: time, level, component, subject,
// message, then remaining attributes sorted by key.
func Format(e Entry) string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", e.Level.String())
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	if e.Subject != "" {
		b.WriteByte(' ')
		b.WriteString(e.Subject)
	}
	b.WriteString(" - ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
	}
	return b.String()
}
