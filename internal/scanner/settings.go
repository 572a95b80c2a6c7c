package scanner

import (
	"fmt"
	"sync"
	"time"

	"arb-scanner/arbitrage"
	"arb-scanner/config"
)

// SettingsSnapshot 当前生效的扫描参数。
type SettingsSnapshot struct {
	ThresholdPct float64          `json:"threshold_pct"`
	IntervalSec  int              `json:"interval_sec"`
	Policy       arbitrage.Policy `json:"policy"`
}

// Interval 轮询间隔。
func (s SettingsSnapshot) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

func (s SettingsSnapshot) scanConfig() config.ScanConfig {
	return config.ScanConfig{
		ThresholdPct: s.ThresholdPct,
		IntervalSec:  s.IntervalSec,
		Policy:       string(s.Policy),
	}
}

// Settings 运行期可调参数（阈值、间隔、策略），无需重启即可修改。
// 热更新与看板共用同一份校验规则。
type Settings struct {
	mu      sync.RWMutex
	current SettingsSnapshot
	changed chan struct{}
}

// NewSettings 从配置构建参数，配置非法时返回错误。
func NewSettings(scan config.ScanConfig) (*Settings, error) {
	snap, err := toSnapshot(scan)
	if err != nil {
		return nil, err
	}
	return &Settings{current: snap, changed: make(chan struct{}, 1)}, nil
}

// Snapshot 返回当前参数副本。
func (s *Settings) Snapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Changed 参数变化时收到通知（合并多次变化）。
func (s *Settings) Changed() <-chan struct{} {
	return s.changed
}

// Update 整体替换参数。
func (s *Settings) Update(scan config.ScanConfig) error {
	snap, err := toSnapshot(scan)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	s.notify()
	return nil
}

// ApplyParameters 按 key 局部更新：threshold_pct / interval_sec / policy。
// 任一字段非法时整体不生效。
func (s *Settings) ApplyParameters(params map[string]interface{}) error {
	s.mu.Lock()
	next := s.current.scanConfig()
	if v, ok := params["threshold_pct"]; ok {
		f, err := toFloat(v)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("threshold_pct: %w", err)
		}
		next.ThresholdPct = f
	}
	if v, ok := params["interval_sec"]; ok {
		f, err := toFloat(v)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("interval_sec: %w", err)
		}
		next.IntervalSec = int(f)
	}
	if v, ok := params["policy"]; ok {
		p, isStr := v.(string)
		if !isStr {
			s.mu.Unlock()
			return fmt.Errorf("policy: expected string, got %T", v)
		}
		next.Policy = p
	}
	snap, err := toSnapshot(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = snap
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Settings) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func toSnapshot(scan config.ScanConfig) (SettingsSnapshot, error) {
	if err := config.ValidateScan(scan); err != nil {
		return SettingsSnapshot{}, err
	}
	policy, err := arbitrage.ParsePolicy(scan.Policy)
	if err != nil {
		return SettingsSnapshot{}, err
	}
	return SettingsSnapshot{
		ThresholdPct: scan.ThresholdPct,
		IntervalSec:  scan.IntervalSec,
		Policy:       policy,
	}, nil
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
