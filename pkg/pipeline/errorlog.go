package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"xscraper/pkg/collector"
)

// ErrorEvent is one structured failure record.
type ErrorEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	RunID     string          `json:"runId"`
	Kind      string          `json:"kind"`
	Context   string          `json:"context"`
	Stats     collector.Stats `json:"stats"`
}

// ErrorLog appends failure events to a JSONL file, one record per line.
type ErrorLog struct {
	path string
	mu   sync.Mutex
}

// NewErrorLog creates the sink, creating parent directories as needed.
func NewErrorLog(path string) (*ErrorLog, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create error log directory: %w", err)
		}
	}
	return &ErrorLog{path: path}, nil
}

// Record appends one event.
func (l *ErrorLog) Record(event ErrorEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal error event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open error log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write error event: %w", err)
	}
	return nil
}
