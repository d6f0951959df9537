package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ldi/pbltrack/internal/config"
)

// Logger appends timestamped lines to .pbltrack/logs/pbltrack.log. A nil
// Logger discards everything, so callers never need to check.
type Logger struct {
	mu    sync.Mutex
	w     io.Writer
	file  *os.File
	debug bool
}

// New creates (or reuses) the log file for the given working directory.
func New(workDir string, debug bool) (*Logger, error) {
	logDir := filepath.Join(workDir, config.Dir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, "pbltrack.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return &Logger{w: f, file: f, debug: debug}, nil
}

// NewWriter logs to w instead of a file.
func NewWriter(w io.Writer, debug bool) *Logger {
	return &Logger{w: w, debug: debug}
}

// Close releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Printf writes a single timestamped line.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || l.w == nil {
		return
	}
	line := fmt.Sprintf(format, args...)
	line = strings.TrimRight(line, "\n")
	timestamp := time.Now().Format(time.RFC3339)

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[%s] %s\n", timestamp, line)
}

// Debugf is Printf when the log level is debug.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || !l.debug {
		return
	}
	l.Printf(format, args...)
}
