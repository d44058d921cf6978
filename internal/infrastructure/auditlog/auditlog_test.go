package auditlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAppend_OneRecordPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := New(path)

	if err := l.Append(map[string]any{"n": 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := l.Append(map[string]any{"n": 2, "job_id": "j1"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), raw)
	}

	var rec struct {
		Timestamp time.Time      `json:"timestamp"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("each line must be a standalone JSON record: %v", err)
	}
	if rec.Timestamp.IsZero() {
		t.Fatalf("record must carry a timestamp")
	}
	if rec.Data["job_id"] != "j1" {
		t.Fatalf("unexpected data: %v", rec.Data)
	}
}

func TestAppend_NeverTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")

	first := New(path)
	if err := first.Append(map[string]any{"n": 1}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A fresh Log on the same path must extend, not replace.
	second := New(path)
	if err := second.Append(map[string]any{"n": 2}); err != nil {
		t.Fatalf("append: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if count := strings.Count(string(raw), "\n"); count != 2 {
		t.Fatalf("expected both records preserved, got %d lines", count)
	}
}
