package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, FormatJSON)
	SetLevel(LevelWarning)
	defer SetLevel(LevelNone)

	Debug("hidden %d", 1)
	Info("hidden %d", 2)
	Warning("shown %d", 3)
	Error("shown %d", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 records but got %d: %q", len(lines), buf.String())
	}
	var record map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("Record is not JSON: %s", err)
	}
	if record["msg"] != "shown 3" {
		t.Errorf("Unexpected message: %v", record["msg"])
	}
	if record["level"] != "WARN" {
		t.Errorf("Unexpected level: %v", record["level"])
	}
}

func TestLevelNoneDisablesLogging(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, FormatText)
	SetLevel(LevelNone)

	Error("should not appear")
	if buf.Len() != 0 {
		t.Errorf("Expected no output but got %q", buf.String())
	}
}
