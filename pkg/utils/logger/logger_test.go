package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/turingarena/turingarena-sub002/pkg/utils/contextkey"

	"go.uber.org/zap"
)

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestGlobalLoggerWritesContextFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	if err := Init(Config{Level: "info", Format: "json", OutputPath: path}); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	t.Cleanup(func() { globalLogger = nil })

	ctx := context.WithValue(context.Background(), contextkey.RunID, "run-7")
	ctx = context.WithValue(ctx, contextkey.TraceID, "trace-3")
	Debug(ctx, "hidden")
	Info(ctx, "run started", zap.Int("calls", 2))
	if err := Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one entry above debug level, got %q", lines)
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry["msg"] != "run started" || entry["run_id"] != "run-7" || entry["trace_id"] != "trace-3" || entry["calls"] != float64(2) {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["request_id"]; ok {
		t.Fatalf("request_id must be absent when not in context")
	}
}

func TestUninitializedLoggerIsSilent(t *testing.T) {
	globalLogger = nil
	Info(context.Background(), "dropped")
	if err := Sync(); err != nil {
		t.Fatalf("sync without logger: %v", err)
	}
}
