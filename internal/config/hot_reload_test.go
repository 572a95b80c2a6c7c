package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// MockParameterApplier 模拟参数应用器
type MockParameterApplier struct {
	applied map[string]interface{}
	err     error
}

func NewMockParameterApplier() *MockParameterApplier {
	return &MockParameterApplier{
		applied: make(map[string]interface{}),
	}
}

func (m *MockParameterApplier) ApplyParameters(params map[string]interface{}) error {
	if m.err != nil {
		return m.err
	}
	for k, v := range params {
		m.applied[k] = v
	}
	return nil
}

func (m *MockParameterApplier) GetApplied(key string) interface{} {
	return m.applied[key]
}

func newTestReloader(t *testing.T, cfg HotReloadConfig) (*HotReloader, string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("env: test"), 0644); err != nil {
		t.Fatalf("Failed to create temp config: %v", err)
	}
	reloader, err := NewHotReloader(configPath, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create hot reloader: %v", err)
	}
	t.Cleanup(func() { reloader.Stop() })
	return reloader, configPath
}

func TestHotReloader_New(t *testing.T) {
	reloader, configPath := newTestReloader(t, DefaultHotReloadConfig())

	if reloader.configPath != configPath {
		t.Errorf("Expected config path %s, got %s", configPath, reloader.configPath)
	}
}

func TestHotReloader_Register(t *testing.T) {
	reloader, _ := newTestReloader(t, DefaultHotReloadConfig())

	reloader.RegisterValidator("scan", &ScanParameterValidator{})
	reloader.RegisterApplier("scan", NewMockParameterApplier())

	if len(reloader.validators) != 1 {
		t.Errorf("Expected 1 validator, got %d", len(reloader.validators))
	}
	if len(reloader.appliers) != 1 {
		t.Errorf("Expected 1 applier, got %d", len(reloader.appliers))
	}
}

func TestHotReloader_ValidateAndApply(t *testing.T) {
	reloader, _ := newTestReloader(t, DefaultHotReloadConfig())

	applier := NewMockParameterApplier()
	reloader.RegisterValidator("scan", &ScanParameterValidator{})
	reloader.RegisterApplier("scan", applier)

	err := reloader.ApplyParameters("scan", map[string]interface{}{
		"threshold_pct": 1.5,
		"interval_sec":  30,
		"policy":        "signed",
	})
	if err != nil {
		t.Errorf("Failed to apply valid parameters: %v", err)
	}
	if applier.GetApplied("threshold_pct") != 1.5 {
		t.Error("Parameters not applied correctly")
	}

	// 验证失败时不应用
	err = reloader.ApplyParameters("scan", map[string]interface{}{"threshold_pct": 500.0})
	if err == nil {
		t.Error("Expected validation error")
	}
	if applier.GetApplied("threshold_pct") != 1.5 {
		t.Error("Invalid parameters must not be applied")
	}

	// 未注册的类别
	if err := reloader.ApplyParameters("risk", map[string]interface{}{}); err == nil {
		t.Error("Expected error for unknown category")
	}
}

func TestHotReloader_ApplierError(t *testing.T) {
	reloader, _ := newTestReloader(t, DefaultHotReloadConfig())

	applier := NewMockParameterApplier()
	applier.err = errors.New("rejected")
	reloader.RegisterValidator("scan", &ScanParameterValidator{})
	reloader.RegisterApplier("scan", applier)

	if err := reloader.ApplyParameters("scan", map[string]interface{}{"interval_sec": 60}); err == nil {
		t.Error("Expected applier error to propagate")
	}
}

func TestHotReloader_StartStop(t *testing.T) {
	reloader, _ := newTestReloader(t, DefaultHotReloadConfig())

	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := reloader.Stop(); err != nil {
		t.Errorf("Failed to stop reloader: %v", err)
	}
	// 重复调用不报错
	if err := reloader.Stop(); err != nil {
		t.Errorf("Second stop returned error: %v", err)
	}
}

func TestHotReloader_DisabledStop(t *testing.T) {
	reloader, _ := newTestReloader(t, HotReloadConfig{Enabled: false})

	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Start on disabled reloader: %v", err)
	}
	if err := reloader.Stop(); err != nil {
		t.Errorf("Stop on disabled reloader: %v", err)
	}
}

func TestHotReloader_ReloadOnWrite(t *testing.T) {
	reloader, configPath := newTestReloader(t, HotReloadConfig{Enabled: true, CooldownTime: 0})

	var calls atomic.Int32
	reloader.SetReloadHandler(func() error {
		calls.Add(1)
		return nil
	})
	if err := reloader.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start reloader: %v", err)
	}

	// 同目录其他文件不触发
	if err := os.WriteFile(filepath.Join(filepath.Dir(configPath), "other.yaml"), []byte("x: 1"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(configPath, []byte("env: changed"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("reload handler was not called")
	}
	if reloader.GetLastReloadTime().IsZero() {
		t.Error("Expected last reload time to be set")
	}
}

func TestScanParameterValidator_Valid(t *testing.T) {
	validator := &ScanParameterValidator{}

	testCases := []struct {
		name   string
		params map[string]interface{}
	}{
		{
			name: "Valid parameters",
			params: map[string]interface{}{
				"threshold_pct": 0.5,
				"interval_sec":  60,
				"policy":        "directional",
			},
		},
		{
			name: "Minimum values",
			params: map[string]interface{}{
				"threshold_pct": 0.0,
				"interval_sec":  10.0,
			},
		},
		{
			name: "Maximum values",
			params: map[string]interface{}{
				"threshold_pct": 100.0,
				"interval_sec":  300,
			},
		},
		{
			name:   "Empty",
			params: map[string]interface{}{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validator.Validate(tc.params); err != nil {
				t.Errorf("Expected valid parameters but got error: %v", err)
			}
		})
	}
}

func TestScanParameterValidator_Invalid(t *testing.T) {
	validator := &ScanParameterValidator{}

	testCases := []struct {
		name   string
		params map[string]interface{}
	}{
		{"Negative threshold", map[string]interface{}{"threshold_pct": -0.1}},
		{"Threshold too large", map[string]interface{}{"threshold_pct": 101.0}},
		{"Threshold not a number", map[string]interface{}{"threshold_pct": "1"}},
		{"Interval too small", map[string]interface{}{"interval_sec": 5}},
		{"Interval too large", map[string]interface{}{"interval_sec": 301}},
		{"Interval fractional", map[string]interface{}{"interval_sec": 30.5}},
		{"Unknown policy", map[string]interface{}{"policy": "greedy"}},
		{"Policy not a string", map[string]interface{}{"policy": 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validator.Validate(tc.params); err == nil {
				t.Error("Expected validation error but got none")
			}
		})
	}
}

func TestHotReloader_GetLastReloadTime(t *testing.T) {
	reloader, _ := newTestReloader(t, DefaultHotReloadConfig())

	if !reloader.GetLastReloadTime().IsZero() {
		t.Error("Expected zero time for last reload")
	}
}
