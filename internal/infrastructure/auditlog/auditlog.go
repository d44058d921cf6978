package auditlog

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

type record struct {
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Log is an append-only audit trail: one JSON record per line, never
// truncated or rewritten. Appends are serialized and issued as a single
// O_APPEND write so concurrent request handlers cannot interleave lines.
type Log struct {
	mu   sync.Mutex
	path string
}

// New creates an audit log writing to path. The file is created on first
// append.
func New(path string) *Log {
	return &Log{path: path}
}

// Append writes one {timestamp, data} record.
func (l *Log) Append(data map[string]any) error {
	line, err := json.Marshal(record{Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	_, writeErr := f.Write(line)
	closeErr := f.Close()
	if writeErr != nil {
		return writeErr
	}
	return closeErr
}
