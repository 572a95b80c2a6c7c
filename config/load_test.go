package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTempConfig(t, `
env: dev
venues:
  binance:
    baseURL: https://api.test
scan:
  thresholdPct: 1
  policy: signed
  intervalSec: 30
watchList:
  - SOL/USDT
  - ray/usdt
  - SOL/USDT
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Env != "dev" || cfg.Venues.Binance.BaseURL != "https://api.test" {
		t.Fatalf("unexpected cfg values: %+v", cfg)
	}
	if cfg.Venues.Raydium.BaseURL != "https://api.raydium.io" {
		t.Fatalf("defaults not kept: %+v", cfg.Venues)
	}
	if cfg.Scan.Interval() != 30*time.Second {
		t.Fatalf("unexpected interval %v", cfg.Scan.Interval())
	}
	pairs, err := cfg.Pairs()
	if err != nil {
		t.Fatalf("pairs: %v", err)
	}
	if len(pairs) != 2 || pairs[1].String() != "RAY/USDT" {
		t.Fatalf("unexpected pairs %v", pairs)
	}
	if cfg.Aliases["WSOL"] != "SOL" {
		t.Fatalf("default aliases missing: %v", cfg.Aliases)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
env: prod
watchList: [SOL/USDT]
`)
	t.Setenv("ARB_BINANCE_URL", "http://binance.local")
	t.Setenv("ARB_THRESHOLD_PCT", "1.5")
	t.Setenv("ARB_INTERVAL_SEC", "15")
	t.Setenv("ARB_POLICY", "signed")
	t.Setenv("ARB_METRICS_ADDR", "")
	cfg, err := LoadWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Venues.Binance.BaseURL != "http://binance.local" {
		t.Fatalf("env overrides not applied: %+v", cfg.Venues)
	}
	if cfg.Scan.ThresholdPct != 1.5 || cfg.Scan.IntervalSec != 15 || cfg.Scan.Policy != "signed" {
		t.Fatalf("scan overrides not applied: %+v", cfg.Scan)
	}
	if cfg.Server.MetricsAddr != "" {
		t.Fatalf("empty ARB_METRICS_ADDR should disable metrics, got %q", cfg.Server.MetricsAddr)
	}
}

func TestLoadWithEnvOverridesRejectsBadValues(t *testing.T) {
	path := writeTempConfig(t, "env: prod\nwatchList: [SOL/USDT]\n")
	t.Setenv("ARB_INTERVAL_SEC", "5")
	if _, err := LoadWithEnvOverrides(path); err == nil {
		t.Fatalf("expected interval below slider bounds to fail")
	}
	t.Setenv("ARB_INTERVAL_SEC", "abc")
	if _, err := LoadWithEnvOverrides(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	err := Validate(AppConfig{})
	if err == nil {
		t.Fatalf("expected error for empty config")
	}
	var inv ErrInvalid
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalid, got %T", err)
	}

	cfg := Defaults()
	cfg.WatchList = []string{"SOLUSDT"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for malformed watch-list entry")
	}

	cfg = Defaults()
	cfg.WatchList = []string{"SOL/USDT"}
	cfg.Gateway.MaxBodyMB = -1
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for negative maxBodyMB")
	}
	cfg.Gateway.MaxBodyMB = 128
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Gateway.MaxBodyBytes(); got != 128<<20 {
		t.Fatalf("expected 128MB in bytes, got %d", got)
	}
}

func TestValidateScan(t *testing.T) {
	ok := ScanConfig{ThresholdPct: 0.5, Policy: "directional", IntervalSec: 60}
	if err := ValidateScan(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []ScanConfig{
		{ThresholdPct: -1, Policy: "directional", IntervalSec: 60},
		{ThresholdPct: 0.5, Policy: "directional", IntervalSec: 9},
		{ThresholdPct: 0.5, Policy: "directional", IntervalSec: 301},
		{ThresholdPct: 0.5, Policy: "absolute", IntervalSec: 60},
	}
	for _, s := range bad {
		if err := ValidateScan(s); err == nil {
			t.Fatalf("expected error for %+v", s)
		}
	}
}
