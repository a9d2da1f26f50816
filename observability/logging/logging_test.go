package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestHandlerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Warn("loan defaulted", "loanId", 3)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["severity"] != "WARN" || line["message"] != "loan defaulted" {
		t.Fatalf("unexpected line %v", line)
	}
	if _, ok := line["timestamp"]; !ok {
		t.Fatalf("expected timestamp key in %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{"": slog.LevelInfo, "DEBUG": slog.LevelDebug, "warning": slog.LevelWarn, "error": slog.LevelError, "bogus": slog.LevelInfo}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestSetupWithFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	logger := SetupWithOptions("sentechaind", "test", Options{File: path})
	if logger == nil {
		t.Fatalf("expected logger")
	}
	logger.Info("started")
}
