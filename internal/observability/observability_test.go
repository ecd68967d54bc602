package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"retail-analytics/internal/config"
)

func TestNewLoggerTo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LoggerConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "rows", 10)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info should be filtered at warn level")
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("not a JSON log line: %v (%s)", err, out)
	}
	if entry["msg"] != "shown" || entry["service"] != serviceName || entry["rows"] != float64(10) {
		t.Errorf("entry = %v", entry)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerFrom(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerTo(&buf, config.LoggerConfig{Level: "info", Format: "text"})

	if LoggerFrom(context.Background(), base) != base {
		t.Error("empty context should return base logger")
	}

	ctx := WithRequestID(context.Background(), "req-42")
	ctx, span := StartSpan(ctx, "test")
	LoggerFrom(ctx, base).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=req-42") || !strings.Contains(out, "trace_id="+span.TraceID) {
		t.Errorf("log line missing ids: %s", out)
	}
}

func TestSpans(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "parent")
	_, child := StartSpan(ctx, "child")

	if child.TraceID != parent.TraceID || child.ParentID != parent.SpanID {
		t.Errorf("child = %+v, parent = %+v", child, parent)
	}
	if len(parent.SpanID) != 16 || parent.SpanID == child.SpanID {
		t.Errorf("span ids %q %q", parent.SpanID, child.SpanID)
	}
	if GetSpan(ctx) != parent {
		t.Error("GetSpan should return the span stored in ctx")
	}

	child.SetError(errors.New("bad input"))
	child.SetTag("rows", "3")

	var buf bytes.Buffer
	child.End(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	if child.Status() != SpanStatusError {
		t.Errorf("status = %s, want ERROR", child.Status())
	}
	out := buf.String()
	for _, want := range []string{"span finished", "operation=child", "error=\"bad input\"", "rows=3"} {
		if !strings.Contains(out, want) {
			t.Errorf("span log missing %q: %s", want, out)
		}
	}
}
