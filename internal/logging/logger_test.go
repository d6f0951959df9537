package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Printf("ignored %d", 1)
	l.Debugf("ignored")
	if err := l.Close(); err != nil {
		t.Fatalf("Close on nil logger: %v", err)
	}
}

func TestPrintfWritesTimestampedLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, false)

	l.Printf("task %s moved to %s\n", "t1", "done")
	l.Debugf("hidden at info level")

	out := buf.String()
	if !strings.HasPrefix(out, "[") || !strings.Contains(out, "] task t1 moved to done\n") {
		t.Fatalf("unexpected line %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", out)
	}
}

func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	NewWriter(&buf, true).Debugf("GET %s", "/api/projects")
	if !strings.Contains(buf.String(), "GET /api/projects") {
		t.Fatalf("expected debug line, got %q", buf.String())
	}
}

func TestNewCreatesLogFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Printf("hello")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ".pbltrack", "logs", "pbltrack.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected log line, got %q", data)
	}
}
