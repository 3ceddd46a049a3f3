// Package csvlog appends submissions to a local CSV file so the owner has a
// log that survives without any external service.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
)

var header = []string{"ref", "when", "client_name", "client_email", "client_phone", "return_type", "dependents", "file_count"}

// Logger appends one row per submission. Appends are serialized so rows
// from concurrent workers never interleave.
type Logger struct {
	mu   sync.Mutex
	path string
}

// New constructs a Logger; path may be empty to disable logging.
func New(path string) *Logger {
	return &Logger{path: path}
}

// Enabled reports whether a log path is configured.
func (l *Logger) Enabled() bool {
	return l.path != ""
}

// Append writes one row, creating the file with a header row first if it
// does not exist yet.
func (l *Logger) Append(ref, when, name, email, phone, returnType, dependents string, fileCount int) error {
	if l.path == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	_, statErr := os.Stat(l.path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := w.Write([]string{ref, when, name, email, phone, returnType, dependents, strconv.Itoa(fileCount)}); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv log: %w", err)
	}
	return nil
}
