package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewProvidesJSONLogger(t *testing.T) {
	l := New(nil)
	if l == nil {
		t.Fatal("expected logger, got nil")
	}
	if !l.Enabled(context.Background(), slog.LevelInfo) {
		t.Errorf("expected info level to be enabled")
	}
	if l.Enabled(context.Background(), slog.LevelDebug) {
		t.Errorf("did not expect debug level to be enabled")
	}
	if _, ok := l.Handler().(*slog.JSONHandler); !ok {
		t.Fatalf("expected JSON handler, got %T", l.Handler())
	}
}

func TestNewHonoursLevel(t *testing.T) {
	l := New(slog.LevelWarn)
	if l.Enabled(context.Background(), slog.LevelInfo) {
		t.Errorf("did not expect info level to be enabled")
	}
	if !l.Enabled(context.Background(), slog.LevelError) {
		t.Errorf("expected error level to be enabled")
	}
}

func TestLoggerTagsService(t *testing.T) {
	var buf bytes.Buffer
	newWithWriter(&buf, slog.LevelInfo).Info("hello", slog.String("order_id", "o1"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "coursemart" || entry["order_id"] != "o1" || entry["msg"] != "hello" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}
