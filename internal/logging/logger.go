// Package logging provides leveled logging and iteration tracing for spikeloop.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A TraceLogger for per-iteration JSONL traces (~/.spikeloop/trace.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every
// extracted record is logged, not just the per-iteration counts.
const LevelTrace = slog.LevelDebug - 4

// TraceFile is the name of the JSONL trace file inside the trace directory.
const TraceFile = "trace.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "trace", "debug", "info", "warn", "error" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a known level.
func ValidLevel(s string) bool {
	switch strings.ToLower(s) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// TraceLogger appends run-loop events to a JSONL file, one object per line.
// It is safe for concurrent use. A nil TraceLogger is valid and every
// method on it is a no-op.
type TraceLogger struct {
	mu    sync.Mutex
	file  *os.File
	run   int64
	nowFn func() time.Time
}

// NewTraceLogger opens dir/trace.jsonl for append when level is debug or
// more verbose. Otherwise, or when the file cannot be opened, it returns nil.
func NewTraceLogger(dir string, level string) *TraceLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, TraceFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &TraceLogger{file: f, nowFn: time.Now}
}

// SetRun tags subsequent events with an archive run id.
func (tl *TraceLogger) SetRun(id int64) {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	tl.run = id
	tl.mu.Unlock()
}

// Log writes event as a single line named kind. "event" and "time" fields
// are added, plus "run" once SetRun was called. The caller's map is not mutated.
func (tl *TraceLogger) Log(kind string, fields map[string]any) {
	if tl == nil {
		return
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file == nil {
		return
	}

	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["event"] = kind
	entry["time"] = tl.nowFn().UTC().Format(time.RFC3339Nano)
	if tl.run != 0 {
		entry["run"] = tl.run
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = tl.file.Write(append(data, '\n'))
}

// Close closes the underlying file.
func (tl *TraceLogger) Close() {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.file != nil {
		tl.file.Close()
		tl.file = nil
	}
}
