package applog

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCompactHandlerFormatsTagAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo))
	log = Tagged(log, "store")
	log.Info("snapshot written", "path", "/tmp/snapshot.json", "bytes", 128)

	line := buf.String()
	if !strings.Contains(line, "[store]") {
		t.Fatalf("expected tag prefix, got %q", line)
	}
	if !strings.Contains(line, "snapshot written") {
		t.Fatalf("expected message, got %q", line)
	}
	if !strings.Contains(line, "path=/tmp/snapshot.json") {
		t.Fatalf("expected path attr, got %q", line)
	}
	if !strings.Contains(line, "bytes=128") {
		t.Fatalf("expected bytes attr, got %q", line)
	}
}

func TestCompactHandlerOmitsTagBracketsWhenUntagged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelInfo))
	log.Info("listening", "addr", ":8080")

	line := buf.String()
	if strings.Contains(line, "[") {
		t.Fatalf("expected no tag brackets, got %q", line)
	}
}

func TestCompactHandlerRespectsMinimumLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, slog.LevelWarn))
	log.Info("should be dropped")
	log.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should be dropped") {
		t.Fatalf("info record should have been filtered, got %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn record should have been written, got %q", out)
	}
}
