package container

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"arb-scanner/infrastructure/logger"
)

// Lifecycle 生命周期接口
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop() error
	Health() error
}

// LifecycleManager 生命周期管理器
type LifecycleManager struct {
	components []Lifecycle
	mu         sync.RWMutex
}

// NewLifecycleManager 创建新的生命周期管理器
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{
		components: make([]Lifecycle, 0),
	}
}

// Register 注册组件
func (m *LifecycleManager) Register(component Lifecycle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component)
}

// StartAll 按顺序启动所有组件
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Start(ctx); err != nil {
			// 启动失败，回滚已启动的组件
			for j := i - 1; j >= 0; j-- {
				m.components[j].Stop()
			}
			return fmt.Errorf("start %s failed: %w", componentName(component, i), err)
		}
	}
	return nil
}

// StopAll 逆序停止所有组件，返回所有错误
func (m *LifecycleManager) StopAll() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for i := len(m.components) - 1; i >= 0; i-- {
		if err := m.components[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckHealth 检查所有组件健康状态
func (m *LifecycleManager) CheckHealth() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, component := range m.components {
		if err := component.Health(); err != nil {
			return fmt.Errorf("%s unhealthy: %w", componentName(component, i), err)
		}
	}
	return nil
}

type named interface {
	Name() string
}

func componentName(c Lifecycle, i int) string {
	if n, ok := c.(named); ok {
		return n.Name()
	}
	return fmt.Sprintf("component %d", i)
}

// funcComponent 用函数拼装组件，适配已有 Start/Stop 签名不同的对象
type funcComponent struct {
	name   string
	start  func(ctx context.Context) error
	stop   func() error
	health func() error
}

func (f *funcComponent) Name() string { return f.name }

func (f *funcComponent) Start(ctx context.Context) error {
	if f.start == nil {
		return nil
	}
	return f.start(ctx)
}

func (f *funcComponent) Stop() error {
	if f.stop == nil {
		return nil
	}
	return f.stop()
}

func (f *funcComponent) Health() error {
	if f.health == nil {
		return nil
	}
	return f.health()
}

// httpServerComponent HTTP服务器组件
type httpServerComponent struct {
	name    string
	handler http.Handler
	addr    string
	logger  *logger.Logger
	server  *http.Server
	started bool
	mu      sync.Mutex
}

func (h *httpServerComponent) Name() string { return h.name }

// Start 同步监听端口，端口被占用时直接返回错误
func (h *httpServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("%s listen %s: %w", h.name, h.addr, err)
	}
	srv := &http.Server{
		Handler:           h.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.server = srv

	go func() {
		h.logger.Info("http server listening", zap.String("component", h.name), zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.logger.LogError(err, map[string]interface{}{
				"component": h.name,
				"action":    "serve",
			})
		}
	}()

	h.started = true
	return nil
}

func (h *httpServerComponent) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started || h.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", h.name, err)
	}

	h.logger.Info("http server stopped", zap.String("component", h.name))
	h.started = false
	return nil
}

func (h *httpServerComponent) Health() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return fmt.Errorf("%s not started", h.name)
	}
	return nil
}

// systemdNotifier 向 systemd 报告 READY / WATCHDOG / STATUS / STOPPING。
// 不在 systemd 下运行时（无 NOTIFY_SOCKET）所有通知都是空操作。
type systemdNotifier struct {
	logger *logger.Logger
	health func() error
	status func() string
	notify func(state string) (bool, error)

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex
}

func newSystemdNotifier(log *logger.Logger, health func() error, status func() string) *systemdNotifier {
	return &systemdNotifier{
		logger: log,
		health: health,
		status: status,
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *systemdNotifier) Name() string { return "systemd_notifier" }

func (n *systemdNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	sent, err := n.notify(daemon.SdNotifyReady)
	if err != nil {
		n.logger.Warn("sd_notify ready failed", zap.Error(err))
	}
	if !sent {
		return nil
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return nil
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.watchdog(loopCtx, interval/2)
	return nil
}

// watchdog 只有组件健康时才喂狗，不健康时由 systemd 重启进程
func (n *systemdNotifier) watchdog(ctx context.Context, every time.Duration) {
	defer close(n.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.beat()
		}
	}
}

func (n *systemdNotifier) beat() {
	if n.health != nil {
		if err := n.health(); err != nil {
			n.logger.Warn("skip watchdog ping", zap.Error(err))
			return
		}
	}
	n.notify(daemon.SdNotifyWatchdog)
	if n.status != nil {
		if s := n.status(); s != "" {
			n.notify("STATUS=" + s)
		}
	}
}

func (n *systemdNotifier) Stop() error {
	n.mu.Lock()
	cancel, done := n.cancel, n.done
	n.cancel, n.done = nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	_, err := n.notify(daemon.SdNotifyStopping)
	return err
}

func (n *systemdNotifier) Health() error { return nil }
