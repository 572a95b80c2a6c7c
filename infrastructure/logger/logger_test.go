package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObserved() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{Logger: zap.New(core), config: DefaultConfig()}, logs
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestNewWritesFiles(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "scanner.log")
	errFile := filepath.Join(dir, "scanner_errors.log")
	l, err := New(Config{Level: "info", Outputs: []string{"file"}, OutputFile: out, ErrorFile: errFile, Format: "json"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.Info("hello")
	l.LogFetchError("raydium", "status", errors.New("status 503"))
	_ = l.Close()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Fatalf("expected info line in %s", data)
	}
	errData, err := os.ReadFile(errFile)
	if err != nil {
		t.Fatalf("read error log: %v", err)
	}
	if strings.Contains(string(errData), "hello") || !strings.Contains(string(errData), "fetch_error") {
		t.Fatalf("error log should only hold error events: %s", errData)
	}
}

func TestLogEventSchema(t *testing.T) {
	l, logs := newObserved()
	l.LogEvent("scan_result", map[string]interface{}{"cycle_id": "abc"})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if _, ok := fields["_schema_error"]; !ok {
		t.Fatalf("expected schema error for incomplete scan_result: %v", fields)
	}
	if fields["event"] != "scan_result" {
		t.Fatalf("event field missing: %v", fields)
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Fatalf("expected info level, got %v", entries[0].Level)
	}
}

func TestLogOpportunityAndErrors(t *testing.T) {
	l, logs := newObserved()
	l.LogOpportunity("c-1", map[string]interface{}{
		"pair":       "SOL/USDT",
		"profit_pct": 2.33,
		"price_a":    150.0,
		"price_b":    153.5,
	})
	l.LogFetchError("binance", "transport", errors.New("dial tcp: timeout"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if _, ok := entries[0].ContextMap()["_schema_error"]; ok {
		t.Fatalf("opportunity should satisfy schema: %v", entries[0].ContextMap())
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("fetch_error should log at error level")
	}

	child := l.WithFields(map[string]interface{}{"component": "scanner"})
	child.Info("x")
	if logs.FilterField(zap.String("component", "scanner")).Len() != 1 {
		t.Fatalf("WithFields did not attach fields")
	}
}
