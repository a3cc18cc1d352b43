package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"warn", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error", "error", slog.LevelError},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "loud", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"trace", "DEBUG", "info", "warn", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true")
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
		{"warn filters info", "warn", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			if got := strings.Contains(buf.String(), "info message"); got != tt.logAtInfo {
				t.Errorf("info visible = %v, want %v (buf: %q)", got, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "spike", "neuron", 3)
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("expected TRACE label, got %q", buf.String())
	}
}

func TestNewTraceLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "info")
	if tl != nil {
		t.Error("expected nil TraceLogger at info level")
	}

	// nil is still usable
	tl.Log("step", map[string]any{"elapsed": 100.0})
	tl.SetRun(1)
	tl.Close()

	if _, err := os.Stat(filepath.Join(dir, TraceFile)); err == nil {
		t.Error("trace file should not exist at info level")
	}
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("parse %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestTraceLogger_WritesEvents(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	tl := NewTraceLogger(dir, "debug")
	if tl == nil {
		t.Fatal("expected TraceLogger at debug level")
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tl.nowFn = func() time.Time { return fixed }

	tl.Log("top_up", map[string]any{"channel": "fast"})
	tl.SetRun(7)
	tl.Log("window", map[string]any{"records": 3})
	tl.Close()

	lines := readLines(t, filepath.Join(dir, TraceFile))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["event"] != "top_up" || lines[0]["channel"] != "fast" {
		t.Errorf("unexpected first entry %v", lines[0])
	}
	if _, ok := lines[0]["run"]; ok {
		t.Error("run should be absent before SetRun")
	}
	if lines[1]["run"] != float64(7) {
		t.Errorf("run = %v, want 7", lines[1]["run"])
	}
	if lines[1]["time"] != "2026-01-02T03:04:05Z" {
		t.Errorf("time = %v", lines[1]["time"])
	}
}

func TestTraceLogger_DoesNotMutateCallerMap(t *testing.T) {
	tl := NewTraceLogger(t.TempDir(), "trace")
	defer tl.Close()

	fields := map[string]any{"k": 1}
	tl.Log("step", fields)
	if len(fields) != 1 {
		t.Errorf("Log mutated caller map: %v", fields)
	}
}

func TestTraceLogger_LogAfterClose(t *testing.T) {
	tl := NewTraceLogger(t.TempDir(), "debug")
	tl.Close()
	tl.Log("step", nil)
	tl.Close()
}

func TestTraceLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	tl := NewTraceLogger(dir, "debug")
	defer tl.Close()
	tl.Log("step", nil)

	info, err := os.Stat(filepath.Join(dir, TraceFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %o, want 0600", perm)
	}
}
