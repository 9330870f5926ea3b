package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug": DebugLevel,
		"info":  InfoLevel,
		"":      InfoLevel,
		"WARN":  WarnLevel,
		"error": ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %v want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("bogus"); err == nil {
		t.Fatalf("expected error for bogus level")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(WarnLevel), WithOutput(NewWriterOutput(&buf)))
	l.Debug("drop me")
	l.Info("drop me too")
	l.Warn("keep me")
	out := buf.String()
	if strings.Contains(out, "drop me") {
		t.Fatalf("below-level entries should be dropped: %q", out)
	}
	if !strings.Contains(out, "keep me") {
		t.Fatalf("warn entry missing: %q", out)
	}
}

func TestWithFieldsInherited(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithOutput(NewWriterOutput(&buf)))
	child := l.With(Component("broker"), Str("queue", "post_events"))
	child.Info("connected", Int("attempt", 1))
	out := buf.String()
	for _, want := range []string{"component=broker", "queue=post_events", "attempt=1", "connected"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(NewWriterOutput(&buf)))
	l.Info("hello", Str("k", "v"), Int64("n", 7))
	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("invalid json output: %v", err)
	}
	if m["msg"] != "hello" || m["level"] != "INFO" || m["k"] != "v" {
		t.Fatalf("unexpected fields: %v", m)
	}
}
