package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "escrow.log")
	logger := New("warn", path)

	logger.Info("dropped")
	logger.Warn("kept", "wager_id", 7)

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line at warn level, got %d: %q", len(lines), raw)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if entry["msg"] != "kept" || entry["wager_id"] != float64(7) {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
