package container

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"arb-scanner/config"
	"arb-scanner/gateway"
	"arb-scanner/infrastructure/alert"
	"arb-scanner/infrastructure/logger"
	"arb-scanner/infrastructure/monitor"
	hotreload "arb-scanner/internal/config"
	"arb-scanner/internal/dashboard"
	"arb-scanner/internal/scanner"
	"arb-scanner/normalize"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg        *config.AppConfig
	configPath string

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 行情网关
	binance *gateway.BinanceRESTClient
	raydium *gateway.RaydiumRESTClient

	// 核心服务
	settings *scanner.Settings
	scanner  *scanner.Scanner
	reloader *hotreload.HotReloader

	// 看板
	hub       *dashboard.Hub
	dashboard *dashboard.Server

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 加载配置（含 .env 与 ARB_* 环境变量覆盖）并创建Container
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewWithConfig(cfg, configPath), nil
}

// NewWithConfig 使用已加载的配置创建Container；configPath 仅用于热更新。
func NewWithConfig(cfg config.AppConfig, configPath string) *Container {
	return &Container{
		cfg:        &cfg,
		configPath: configPath,
		lifecycle:  NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	c.buildGateway()

	if err := c.buildScanner(); err != nil {
		return fmt.Errorf("build scanner failed: %w", err)
	}

	if err := c.buildHotReload(); err != nil {
		return fmt.Errorf("build hot reload failed: %w", err)
	}

	c.buildDashboard()
	c.registerLifecycleComponents()
	c.logger.Info("container built", zap.String("env", c.cfg.Env))
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(logger.Config{
		Level:      c.cfg.Log.Level,
		Outputs:    c.cfg.Log.Outputs,
		OutputFile: c.cfg.Log.OutputFile,
		ErrorFile:  c.cfg.Log.ErrorFile,
		Format:     c.cfg.Log.Format,
	})
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(monitor.DefaultConfig())

	channels := []alert.Channel{alert.NewLogChannel("log", c.logger)}
	if c.cfg.Alert.Console {
		channels = append(channels, alert.NewConsoleChannel("console", os.Stdout, c.cfg.Alert.Bell))
	}
	c.alerts = alert.NewManager(channels, time.Duration(c.cfg.Alert.ThrottleSec)*time.Second)
	return nil
}

func (c *Container) buildGateway() {
	c.binance, c.raydium = gateway.BuildVenueClients(gateway.ClientOptions{
		BinanceURL:   c.cfg.Venues.Binance.BaseURL,
		RaydiumURL:   c.cfg.Venues.Raydium.BaseURL,
		Timeout:      c.cfg.Gateway.Timeout(),
		RestRate:     c.cfg.Gateway.RestRate,
		RestBurst:    c.cfg.Gateway.RestBurst,
		MaxBodyBytes: c.cfg.Gateway.MaxBodyBytes(),
	}, nil)
}

func (c *Container) buildScanner() error {
	watch, err := c.cfg.Pairs()
	if err != nil {
		return err
	}
	c.settings, err = scanner.NewSettings(c.cfg.Scan)
	if err != nil {
		return err
	}
	c.monitor.UpdateSettings(c.cfg.Scan.ThresholdPct, float64(c.cfg.Scan.IntervalSec))

	c.scanner, err = scanner.New(scanner.Options{
		CEX: scanner.BinanceSource(c.binance),
		DEX: scanner.RaydiumSource(c.raydium, normalize.Raydium{
			Aliases:           c.cfg.Aliases,
			IncludeUnofficial: c.cfg.Venues.Raydium.IncludeUnofficial,
		}),
		Watch:    watch,
		Settings: c.settings,
		Logger:   c.logger,
		Monitor:  c.monitor,
		Alerts:   c.alerts,
	})
	return err
}

func (c *Container) buildHotReload() error {
	reloader, err := hotreload.NewHotReloader(c.configPath, hotreload.HotReloadConfig{
		Enabled:      c.cfg.HotReload.Enabled && c.configPath != "",
		CooldownTime: time.Duration(c.cfg.HotReload.CooldownMs) * time.Millisecond,
	}, c.logger)
	if err != nil {
		return err
	}
	reloader.RegisterValidator("scan", &hotreload.ScanParameterValidator{})
	reloader.RegisterApplier("scan", &settingsApplier{settings: c.settings, monitor: c.monitor})
	reloader.SetReloadHandler(c.reloadFromFile)
	c.reloader = reloader
	return nil
}

// reloadFromFile 只热更新扫描参数；watchList、交易所地址等需要重启
func (c *Container) reloadFromFile() error {
	next, err := config.LoadWithEnvOverrides(c.configPath)
	if err != nil {
		return err
	}
	if err := c.reloader.ApplyParameters("scan", next.Scan.Params()); err != nil {
		return err
	}
	snap := c.settings.Snapshot()
	c.logger.LogEvent("settings_update", map[string]interface{}{
		"source":        "file",
		"threshold_pct": snap.ThresholdPct,
		"interval_sec":  snap.IntervalSec,
		"policy":        string(snap.Policy),
	})
	return nil
}

func (c *Container) buildDashboard() {
	c.hub = dashboard.NewHub(c.scanner, c.logger, c.monitor.UpdateDashboardClients)
	c.dashboard = dashboard.NewServer(dashboard.Options{
		Reports:  c.scanner,
		Settings: c.settings,
		Updater:  c.reloader,
		Hub:      c.hub,
		Health:   c.scanner.Health,
		Logger:   c.logger,
	})
}

func (c *Container) registerLifecycleComponents() {
	if addr := c.cfg.Server.MetricsAddr; addr != "" {
		c.lifecycle.Register(&httpServerComponent{
			name:    "metrics_server",
			handler: c.monitor.Handler(),
			addr:    addr,
			logger:  c.logger,
		})
	}

	if addr := c.cfg.Server.DashboardAddr; addr != "" {
		c.lifecycle.Register(c.hubComponent())
		c.lifecycle.Register(&httpServerComponent{
			name:    "dashboard_server",
			handler: c.dashboard.Handler(),
			addr:    addr,
			logger:  c.logger,
		})
	}

	c.lifecycle.Register(&funcComponent{
		name:  "scanner",
		start: c.scanner.Start,
		stop: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return c.scanner.Stop(ctx)
		},
		health: c.scanner.Health,
	})

	c.lifecycle.Register(&funcComponent{
		name:  "hot_reload",
		start: c.reloader.Start,
		stop:  c.reloader.Stop,
	})

	// 最后注册：所有组件就绪后才通知 READY
	c.lifecycle.Register(newSystemdNotifier(c.logger, c.lifecycle.CheckHealth, func() string {
		if r, ok := c.scanner.Latest(); ok {
			return r.Summary()
		}
		return ""
	}))
}

// hubComponent 订阅扫描报告并驱动 WebSocket Hub
func (c *Container) hubComponent() Lifecycle {
	var (
		cancel context.CancelFunc
		done   chan struct{}
		feed   <-chan scanner.Report
	)
	return &funcComponent{
		name: "dashboard_hub",
		start: func(ctx context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})
			feed = c.scanner.Publisher().Subscribe()
			go func() {
				defer close(done)
				c.hub.Run(runCtx, feed)
			}()
			return nil
		},
		stop: func() error {
			if cancel == nil {
				return nil
			}
			cancel()
			<-done
			c.scanner.Publisher().Unsubscribe(feed)
			cancel = nil
			return nil
		},
	}
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container",
		zap.Int("watch_list", len(c.cfg.WatchList)),
		zap.Float64("threshold_pct", c.cfg.Scan.ThresholdPct),
		zap.String("policy", c.cfg.Scan.Policy),
		zap.Int("interval_sec", c.cfg.Scan.IntervalSec),
	)

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}
	c.logger.Close()
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// Scanner 暴露扫描器，供单次扫描等工具复用同一套装配。
func (c *Container) Scanner() *scanner.Scanner {
	return c.scanner
}

// settingsApplier 更新运行参数并同步指标
type settingsApplier struct {
	settings *scanner.Settings
	monitor  *monitor.Monitor
}

func (a *settingsApplier) ApplyParameters(params map[string]interface{}) error {
	if err := a.settings.ApplyParameters(params); err != nil {
		return err
	}
	snap := a.settings.Snapshot()
	a.monitor.UpdateSettings(snap.ThresholdPct, float64(snap.IntervalSec))
	return nil
}
