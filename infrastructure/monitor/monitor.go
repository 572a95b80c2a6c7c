package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器，使用独立 registry。
type Monitor struct {
	registry *prometheus.Registry

	// 扫描指标
	scansTotal        *prometheus.CounterVec
	scanDuration      prometheus.Histogram
	opportunities     prometheus.Gauge
	opportunitiesSeen *prometheus.CounterVec
	maxProfitPct      prometheus.Gauge
	lastScan          prometheus.Gauge

	// 行情指标
	quotes        *prometheus.GaugeVec
	fetchErrors   *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	skippedRecord *prometheus.CounterVec

	// 参数指标
	thresholdPct prometheus.Gauge
	intervalSec  prometheus.Gauge

	// 看板
	wsClients prometheus.Gauge
}

// Config 监控配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "arb",
		Subsystem: "scanner",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	ns, sub := cfg.Namespace, cfg.Subsystem

	return &Monitor{
		registry: reg,

		scansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "scans_total",
			Help: "扫描周期总数（按状态）",
		}, []string{"status"}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "scan_duration_seconds",
			Help:    "单个扫描周期耗时",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		opportunities: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "opportunities",
			Help: "最近一个周期的机会数量",
		}),
		opportunitiesSeen: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "opportunities_total",
			Help: "累计发现的机会数量（按交易对）",
		}, []string{"pair"}),
		maxProfitPct: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "max_profit_pct",
			Help: "最近一个周期的最大价差百分比",
		}),
		lastScan: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "last_scan_timestamp_seconds",
			Help: "最近一次扫描完成时间",
		}),

		quotes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "quotes",
			Help: "最近一个周期各交易所匹配到的报价数",
		}, []string{"venue"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "fetch_errors_total",
			Help: "行情拉取失败次数",
		}, []string{"venue", "kind"}),
		fetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "fetch_latency_seconds",
			Help:    "行情拉取耗时",
			Buckets: prometheus.DefBuckets,
		}, []string{"venue"}),
		skippedRecord: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "skipped_records_total",
			Help: "结构不完整被跳过的原始记录数",
		}, []string{"venue"}),

		thresholdPct: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "threshold_pct",
			Help: "当前价差阈值",
		}),
		intervalSec: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "interval_seconds",
			Help: "当前轮询间隔",
		}),

		wsClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "dashboard_clients",
			Help: "看板 WebSocket 连接数",
		}),
	}
}

// RecordScan 记录一个扫描周期的结果
func (m *Monitor) RecordScan(status string, seconds float64, opportunities int, maxProfitPct float64, finishedUnix float64) {
	m.scansTotal.WithLabelValues(status).Inc()
	m.scanDuration.Observe(seconds)
	m.opportunities.Set(float64(opportunities))
	m.maxProfitPct.Set(maxProfitPct)
	m.lastScan.Set(finishedUnix)
}

// RecordOpportunity 累计单个交易对的机会次数
func (m *Monitor) RecordOpportunity(pair string) {
	m.opportunitiesSeen.WithLabelValues(pair).Inc()
}

// UpdateQuotes 更新交易所报价数
func (m *Monitor) UpdateQuotes(venue string, n int) {
	m.quotes.WithLabelValues(venue).Set(float64(n))
}

// RecordFetchError 记录拉取失败
func (m *Monitor) RecordFetchError(venue, kind string) {
	m.fetchErrors.WithLabelValues(venue, kind).Inc()
}

// RecordFetchLatency 记录拉取耗时
func (m *Monitor) RecordFetchLatency(venue string, seconds float64) {
	m.fetchLatency.WithLabelValues(venue).Observe(seconds)
}

// RecordSkipped 记录被跳过的原始记录
func (m *Monitor) RecordSkipped(venue string, n int) {
	if n > 0 {
		m.skippedRecord.WithLabelValues(venue).Add(float64(n))
	}
}

// UpdateSettings 更新当前阈值与间隔
func (m *Monitor) UpdateSettings(thresholdPct, intervalSec float64) {
	m.thresholdPct.Set(thresholdPct)
	m.intervalSec.Set(intervalSec)
}

// UpdateDashboardClients 更新看板连接数
func (m *Monitor) UpdateDashboardClients(n int) {
	m.wsClients.Set(float64(n))
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
