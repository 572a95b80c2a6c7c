package config

import (
	"fmt"
	"math"
	"strings"

	"arb-scanner/arbitrage"
)

const (
	MinIntervalSec  = 10
	MaxIntervalSec  = 300
	MaxThresholdPct = 100
)

// ErrInvalid 用于参数验证错误。
type ErrInvalid string

func (e ErrInvalid) Error() string { return string(e) }

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return ErrInvalid("env is required")
	}
	if len(cfg.WatchList) == 0 {
		return ErrInvalid("watchList is required")
	}
	if _, err := cfg.Pairs(); err != nil {
		return ErrInvalid(fmt.Sprintf("watchList: %v", err))
	}
	if strings.TrimSpace(cfg.Venues.Binance.BaseURL) == "" {
		return ErrInvalid("venues.binance.baseURL is required")
	}
	if strings.TrimSpace(cfg.Venues.Raydium.BaseURL) == "" {
		return ErrInvalid("venues.raydium.baseURL is required")
	}
	if cfg.Gateway.TimeoutMs <= 0 {
		return ErrInvalid("gateway.timeoutMs must be > 0")
	}
	if cfg.Gateway.RestRate <= 0 {
		return ErrInvalid("gateway.restRate must be > 0")
	}
	if cfg.Gateway.RestBurst <= 0 {
		return ErrInvalid("gateway.restBurst must be > 0")
	}
	if cfg.Gateway.MaxBodyMB < 0 {
		return ErrInvalid("gateway.maxBodyMB must be >= 0")
	}
	for from, to := range cfg.Aliases {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return ErrInvalid("aliases must map non-empty symbols")
		}
	}
	if cfg.Alert.ThrottleSec < 0 {
		return ErrInvalid("alert.throttleSec must be >= 0")
	}
	if cfg.HotReload.CooldownMs < 0 {
		return ErrInvalid("hotReload.cooldownMs must be >= 0")
	}
	return ValidateScan(cfg.Scan)
}

// ValidateScan 校验可热更新的扫描参数；热更新与 dashboard 修改共用该规则。
func ValidateScan(s ScanConfig) error {
	if math.IsNaN(s.ThresholdPct) || s.ThresholdPct < 0 || s.ThresholdPct > MaxThresholdPct {
		return ErrInvalid(fmt.Sprintf("scan.thresholdPct must be between 0 and %d, got %v", MaxThresholdPct, s.ThresholdPct))
	}
	if s.IntervalSec < MinIntervalSec || s.IntervalSec > MaxIntervalSec {
		return ErrInvalid(fmt.Sprintf("scan.intervalSec must be between %d and %d, got %d", MinIntervalSec, MaxIntervalSec, s.IntervalSec))
	}
	if _, err := arbitrage.ParsePolicy(s.Policy); err != nil {
		return ErrInvalid("scan.policy: " + err.Error())
	}
	return nil
}
