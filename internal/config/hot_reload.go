package config

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	appconfig "arb-scanner/config"
	"arb-scanner/infrastructure/logger"
)

// HotReloadConfig 热更新配置
type HotReloadConfig struct {
	Enabled      bool          // 是否启用热更新
	CooldownTime time.Duration // 冷却时间，避免编辑器连续写入触发多次重载
}

// DefaultHotReloadConfig 默认热更新配置
func DefaultHotReloadConfig() HotReloadConfig {
	return HotReloadConfig{
		Enabled:      true,
		CooldownTime: 1 * time.Second,
	}
}

// ParameterValidator 参数验证器接口
type ParameterValidator interface {
	Validate(params map[string]interface{}) error
}

// ParameterApplier 参数应用器接口
type ParameterApplier interface {
	ApplyParameters(params map[string]interface{}) error
}

// HotReloader 配置热更新器。监听配置文件所在目录，
// 兼容编辑器以 rename 方式保存文件。
type HotReloader struct {
	config        HotReloadConfig
	configPath    string
	watcher       *fsnotify.Watcher
	log           *logger.Logger
	validators    map[string]ParameterValidator
	appliers      map[string]ParameterApplier
	lastReload    time.Time
	mu            sync.RWMutex
	stopOnce      sync.Once
	stopChan      chan struct{}
	doneChan      chan struct{}
	started       bool
	reloadHandler func() error
}

// NewHotReloader 创建热更新器
func NewHotReloader(configPath string, cfg HotReloadConfig, log *logger.Logger) (*HotReloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &HotReloader{
		config:     cfg,
		configPath: filepath.Clean(configPath),
		watcher:    watcher,
		log:        log,
		validators: make(map[string]ParameterValidator),
		appliers:   make(map[string]ParameterApplier),
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}, nil
}

// RegisterValidator 注册参数验证器
func (h *HotReloader) RegisterValidator(name string, validator ParameterValidator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.validators[name] = validator
}

// RegisterApplier 注册参数应用器
func (h *HotReloader) RegisterApplier(name string, applier ParameterApplier) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.appliers[name] = applier
}

// SetReloadHandler 设置重载处理函数
func (h *HotReloader) SetReloadHandler(handler func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reloadHandler = handler
}

// Start 启动热更新监听
func (h *HotReloader) Start(ctx context.Context) error {
	if !h.config.Enabled {
		return nil
	}

	if err := h.watcher.Add(filepath.Dir(h.configPath)); err != nil {
		return fmt.Errorf("failed to watch config dir: %w", err)
	}

	h.mu.Lock()
	h.started = true
	h.mu.Unlock()
	go h.watch(ctx)

	return nil
}

// Stop 停止热更新，可重复调用
func (h *HotReloader) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		close(h.stopChan)

		h.mu.RLock()
		started := h.started
		h.mu.RUnlock()
		if started {
			<-h.doneChan
		}
		err = h.watcher.Close()
	})
	return err
}

// watch 监听文件变化
func (h *HotReloader) watch(ctx context.Context) {
	defer close(h.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != h.configPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				h.handleConfigChange()
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			// 记录错误但继续监听
			h.log.LogError(err, map[string]interface{}{"component": "hot_reload"})
		}
	}
}

// handleConfigChange 处理配置变化
func (h *HotReloader) handleConfigChange() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if time.Since(h.lastReload) < h.config.CooldownTime {
		return
	}
	h.lastReload = time.Now()

	if h.reloadHandler == nil {
		return
	}
	if err := h.reloadHandler(); err != nil {
		h.log.LogEvent("config_reload", map[string]interface{}{
			"path":  h.configPath,
			"error": err.Error(),
		})
		return
	}
	h.log.LogEvent("config_reload", map[string]interface{}{"path": h.configPath})
}

// ValidateParameters 验证参数
func (h *HotReloader) ValidateParameters(category string, params map[string]interface{}) error {
	h.mu.RLock()
	validator, ok := h.validators[category]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no validator registered for category: %s", category)
	}

	return validator.Validate(params)
}

// ApplyParameters 应用参数
func (h *HotReloader) ApplyParameters(category string, params map[string]interface{}) error {
	if err := h.ValidateParameters(category, params); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	h.mu.RLock()
	applier, ok := h.appliers[category]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("no applier registered for category: %s", category)
	}

	return applier.ApplyParameters(params)
}

// GetLastReloadTime 获取最后重载时间
func (h *HotReloader) GetLastReloadTime() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastReload
}

// ScanParameterValidator 扫描参数验证器，只检查出现的 key
type ScanParameterValidator struct{}

func (v *ScanParameterValidator) Validate(params map[string]interface{}) error {
	if raw, ok := params["threshold_pct"]; ok {
		threshold, isNum := number(raw)
		if !isNum {
			return fmt.Errorf("threshold_pct must be a number, got %T", raw)
		}
		if math.IsNaN(threshold) || threshold < 0 || threshold > appconfig.MaxThresholdPct {
			return fmt.Errorf("threshold_pct must be between 0 and %d, got %f", appconfig.MaxThresholdPct, threshold)
		}
	}

	if raw, ok := params["interval_sec"]; ok {
		interval, isNum := number(raw)
		if !isNum {
			return fmt.Errorf("interval_sec must be a number, got %T", raw)
		}
		if interval != math.Trunc(interval) || interval < appconfig.MinIntervalSec || interval > appconfig.MaxIntervalSec {
			return fmt.Errorf("interval_sec must be an integer between %d and %d, got %v",
				appconfig.MinIntervalSec, appconfig.MaxIntervalSec, interval)
		}
	}

	if raw, ok := params["policy"]; ok {
		policy, isStr := raw.(string)
		if !isStr {
			return fmt.Errorf("policy must be a string, got %T", raw)
		}
		if err := appconfig.ValidateScan(appconfig.ScanConfig{
			ThresholdPct: 0,
			IntervalSec:  appconfig.MinIntervalSec,
			Policy:       policy,
		}); err != nil {
			return err
		}
	}

	return nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
