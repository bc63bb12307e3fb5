package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestVerbosityToLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		expected  slog.Level
	}{
		{-1, slog.LevelError},
		{0, slog.LevelError},
		{1, slog.LevelWarn},
		{2, slog.LevelInfo},
		{3, slog.LevelDebug},
		{4, LevelTrace},
		{9, LevelTrace},
	}

	for _, tt := range tests {
		if got := VerbosityToLevel(tt.verbosity); got != tt.expected {
			t.Errorf("VerbosityToLevel(%d) = %v, want %v", tt.verbosity, got, tt.expected)
		}
	}
}

func TestLevelName(t *testing.T) {
	if got := LevelName(LevelTrace); got != "TRACE" {
		t.Errorf("LevelName(LevelTrace) = %q, want TRACE", got)
	}
	if got := LevelName(slog.LevelWarn); got != "WARN" {
		t.Errorf("LevelName(LevelWarn) = %q, want WARN", got)
	}
}

func TestInitFiltersByVerbosity(t *testing.T) {
	var buf bytes.Buffer
	Init(VerbosityWarn, "text", &buf)
	t.Cleanup(func() { Init(VerbosityWarn, "text", nil) })

	l := Component("scanner")
	l.Info("hidden")
	l.Warn("shown", "path", "/tmp/x")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn verbosity: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "path=/tmp/x") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestInitJSONTrace(t *testing.T) {
	var buf bytes.Buffer
	Init(VerbosityTrace, "json", &buf)
	t.Cleanup(func() { Init(VerbosityWarn, "text", nil) })

	Component("scanner").Info("hello")
	With("run_id", "r1").Log(context.Background(), LevelTrace, "deep")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2: %q", len(lines), buf.String())
	}

	var first, second map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatal(err)
	}
	if first["component"] != "scanner" {
		t.Errorf("component = %v, want scanner", first["component"])
	}
	if second["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", second["level"])
	}
	if second["run_id"] != "r1" {
		t.Errorf("run_id = %v, want r1", second["run_id"])
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard() logger should not be enabled")
	}
}
