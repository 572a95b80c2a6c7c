package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"arb-scanner/arbitrage"
	"arb-scanner/market"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env       string            `yaml:"env"`
	Venues    VenuesConfig      `yaml:"venues"`
	Gateway   GatewayConfig     `yaml:"gateway"`
	Scan      ScanConfig        `yaml:"scan"`
	WatchList []string          `yaml:"watchList"`
	Aliases   map[string]string `yaml:"aliases"`
	Alert     AlertConfig       `yaml:"alert"`
	Log       LogConfig         `yaml:"log"`
	Server    ServerConfig      `yaml:"server"`
	HotReload HotReloadConfig   `yaml:"hotReload"`
}

type VenuesConfig struct {
	Binance BinanceConfig `yaml:"binance"`
	Raydium RaydiumConfig `yaml:"raydium"`
}

type BinanceConfig struct {
	BaseURL string `yaml:"baseURL"`
}

type RaydiumConfig struct {
	BaseURL           string `yaml:"baseURL"`
	IncludeUnofficial bool   `yaml:"includeUnofficial"`
}

type GatewayConfig struct {
	TimeoutMs int     `yaml:"timeoutMs"`
	RestRate  float64 `yaml:"restRate"`  // 每秒令牌数
	RestBurst int     `yaml:"restBurst"` // 最大突发
	MaxBodyMB int     `yaml:"maxBodyMB"` // 单个响应体上限（MB），0 使用默认值
}

// ScanConfig 运行期可调的扫描参数，支持热更新。
type ScanConfig struct {
	ThresholdPct float64 `yaml:"thresholdPct"` // 价差阈值（百分比）
	Policy       string  `yaml:"policy"`       // signed | directional
	IntervalSec  int     `yaml:"intervalSec"`  // 轮询间隔（秒）
}

type AlertConfig struct {
	ThrottleSec int  `yaml:"throttleSec"` // 相同告警的最小间隔
	Console     bool `yaml:"console"`     // 彩色控制台输出
	Bell        bool `yaml:"bell"`        // 控制台响铃（声音提醒）
}

type LogConfig struct {
	Level      string   `yaml:"level"`
	Outputs    []string `yaml:"outputs"`
	OutputFile string   `yaml:"outputFile"`
	ErrorFile  string   `yaml:"errorFile"`
	Format     string   `yaml:"format"`
}

type ServerConfig struct {
	MetricsAddr   string `yaml:"metricsAddr"`   // 留空则关闭
	DashboardAddr string `yaml:"dashboardAddr"` // 留空则关闭
}

type HotReloadConfig struct {
	Enabled    bool `yaml:"enabled"`
	CooldownMs int  `yaml:"cooldownMs"`
}

// Defaults 返回内置默认配置，YAML 在此基础上覆盖。
func Defaults() AppConfig {
	return AppConfig{
		Env: "dev",
		Venues: VenuesConfig{
			Binance: BinanceConfig{BaseURL: "https://api.binance.com"},
			Raydium: RaydiumConfig{BaseURL: "https://api.raydium.io"},
		},
		Gateway: GatewayConfig{
			TimeoutMs: 10000,
			RestRate:  1,
			RestBurst: 2,
		},
		Scan: ScanConfig{
			ThresholdPct: 0.5,
			Policy:       string(arbitrage.PolicyDirectional),
			IntervalSec:  60,
		},
		Aliases: map[string]string{
			"WSOL": "SOL",
			"USDC": "USDT",
		},
		Alert: AlertConfig{
			ThrottleSec: 300,
			Console:     true,
		},
		Log: LogConfig{
			Level:   "info",
			Outputs: []string{"stdout"},
			Format:  "json",
		},
		Server: ServerConfig{
			MetricsAddr:   ":9100",
			DashboardAddr: ":8080",
		},
		HotReload: HotReloadConfig{
			Enabled:    true,
			CooldownMs: 1000,
		},
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides fields from env vars (and .env) if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, Validate(cfg)
}

func applyEnvOverrides(cfg *AppConfig) error {
	if v := os.Getenv("ARB_BINANCE_URL"); v != "" {
		cfg.Venues.Binance.BaseURL = v
	}
	if v := os.Getenv("ARB_RAYDIUM_URL"); v != "" {
		cfg.Venues.Raydium.BaseURL = v
	}
	if v := os.Getenv("ARB_POLICY"); v != "" {
		cfg.Scan.Policy = v
	}
	if v := os.Getenv("ARB_THRESHOLD_PCT"); v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("ARB_THRESHOLD_PCT: %w", err)
		}
		cfg.Scan.ThresholdPct = f
	}
	if v := os.Getenv("ARB_INTERVAL_SEC"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("ARB_INTERVAL_SEC: %w", err)
		}
		cfg.Scan.IntervalSec = n
	}
	if v, ok := os.LookupEnv("ARB_METRICS_ADDR"); ok {
		cfg.Server.MetricsAddr = v
	}
	if v, ok := os.LookupEnv("ARB_DASHBOARD_ADDR"); ok {
		cfg.Server.DashboardAddr = v
	}
	return nil
}

// Pairs 返回解析并去重后的监控列表。
func (c AppConfig) Pairs() ([]market.Pair, error) {
	return market.ParseWatchList(c.WatchList)
}

// Interval 轮询间隔。
func (s ScanConfig) Interval() time.Duration {
	return time.Duration(s.IntervalSec) * time.Second
}

// Params 以热更新参数表的形式导出扫描参数。
func (s ScanConfig) Params() map[string]interface{} {
	return map[string]interface{}{
		"threshold_pct": s.ThresholdPct,
		"interval_sec":  s.IntervalSec,
		"policy":        s.Policy,
	}
}

// MaxBodyBytes 响应体上限（字节），0 表示使用网关默认值。
func (g GatewayConfig) MaxBodyBytes() int64 {
	return int64(g.MaxBodyMB) << 20
}

// Timeout 单次 REST 请求超时。
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMs) * time.Millisecond
}
