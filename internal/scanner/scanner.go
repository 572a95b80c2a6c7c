package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"arb-scanner/arbitrage"
	"arb-scanner/infrastructure/alert"
	"arb-scanner/infrastructure/logger"
	"arb-scanner/infrastructure/monitor"
	"arb-scanner/market"
)

// staleFactor 最近一次报告超过 staleFactor 个间隔未更新视为不健康。
const staleFactor = 3

// Options Scanner 依赖项；Logger/Monitor/Alerts/Publisher 可为空。
type Options struct {
	CEX       Source
	DEX       Source
	Watch     []market.Pair
	Settings  *Settings
	Logger    *logger.Logger
	Monitor   *monitor.Monitor
	Alerts    *alert.Manager
	Publisher *Publisher
}

// Scanner 周期性拉取两个交易所报价并检测价差。
// 周期之间不保留报价，只保留最近一份报告。
type Scanner struct {
	cex, dex  Source
	watch     []market.Pair
	settings  *Settings
	log       *logger.Logger
	mon       *monitor.Monitor
	alerts    *alert.Manager
	publisher *Publisher
	now       func() time.Time

	mu     sync.RWMutex
	latest *Report

	runMu   sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// New 创建 Scanner。
func New(opts Options) (*Scanner, error) {
	if opts.Settings == nil {
		return nil, errors.New("scanner: settings required")
	}
	if len(opts.Watch) == 0 {
		return nil, errors.New("scanner: empty watch list")
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = NewPublisher()
	}
	watch := make([]market.Pair, len(opts.Watch))
	copy(watch, opts.Watch)
	return &Scanner{
		cex:       opts.CEX,
		dex:       opts.DEX,
		watch:     watch,
		settings:  opts.Settings,
		log:       log,
		mon:       opts.Monitor,
		alerts:    opts.Alerts,
		publisher: pub,
		now:       time.Now,
	}, nil
}

// Settings 运行期参数。
func (s *Scanner) Settings() *Settings { return s.settings }

// Publisher 报告分发器。
func (s *Scanner) Publisher() *Publisher { return s.publisher }

// Latest 最近一份报告。
func (s *Scanner) Latest() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Report{}, false
	}
	return *s.latest, true
}

type venueResult struct {
	quotes  market.PriceMap
	err     error
	latency time.Duration
	skipped int
}

// ScanOnce 执行一个完整周期：并发拉取两个交易所、检测价差、记录并发布报告。
// 拉取失败不会中断周期，只体现在报告的 Errors/Status 中。
func (s *Scanner) ScanOnce(ctx context.Context) Report {
	snap := s.settings.Snapshot()
	started := s.now()
	cycleID := uuid.NewString()

	// 拉取错误记录在 venueResult 中：一个交易所失败不取消另一个
	var (
		cexRes, dexRes venueResult
		g              errgroup.Group
	)
	g.Go(func() error {
		cexRes = s.fetch(ctx, s.cex)
		return nil
	})
	g.Go(func() error {
		dexRes = s.fetch(ctx, s.dex)
		return nil
	})
	g.Wait()

	opps := arbitrage.Detect(cexRes.quotes, dexRes.quotes, s.watch, arbitrage.Params{
		ThresholdPct: snap.ThresholdPct,
		Policy:       snap.Policy,
	})

	report := Report{
		CycleID:      cycleID,
		StartedAt:    started.UTC(),
		ThresholdPct: snap.ThresholdPct,
		Policy:       snap.Policy,
		Watched:      len(s.watch),
		Quotes: map[market.Venue]int{
			s.cex.Venue: len(cexRes.quotes),
			s.dex.Venue: len(dexRes.quotes),
		},
		Opportunities: opps,
	}
	if report.Opportunities == nil {
		report.Opportunities = []arbitrage.Opportunity{}
	}
	for _, res := range []struct {
		src Source
		r   venueResult
	}{{s.cex, cexRes}, {s.dex, dexRes}} {
		s.observeVenue(res.src.Venue, res.r)
		if res.r.err == nil {
			continue
		}
		kind := KindUnknown
		var fe *FetchError
		if errors.As(res.r.err, &fe) {
			kind = fe.Kind()
		}
		report.Errors = append(report.Errors, VenueError{
			Venue:   res.src.Venue,
			Kind:    kind,
			Message: res.r.err.Error(),
		})
	}
	report.Status = statusFor(len(report.Errors))
	report.DurationMs = s.now().Sub(started).Milliseconds()

	s.record(report)

	s.mu.Lock()
	s.latest = &report
	s.mu.Unlock()
	s.publisher.Publish(report)
	return report
}

func (s *Scanner) fetch(ctx context.Context, src Source) venueResult {
	begin := time.Now()
	m, stats, err := src.Quotes(ctx, s.watch)
	return venueResult{
		quotes:  m,
		err:     err,
		latency: time.Since(begin),
		skipped: stats.Skipped,
	}
}

func (s *Scanner) observeVenue(venue market.Venue, r venueResult) {
	if s.mon != nil {
		s.mon.UpdateQuotes(venue.String(), len(r.quotes))
		s.mon.RecordFetchLatency(venue.String(), r.latency.Seconds())
		s.mon.RecordSkipped(venue.String(), r.skipped)
	}
	if r.err == nil {
		return
	}
	kind := KindUnknown
	var fe *FetchError
	if errors.As(r.err, &fe) {
		kind = fe.Kind()
	}
	s.log.LogFetchError(venue.String(), kind, r.err)
	if s.mon != nil {
		s.mon.RecordFetchError(venue.String(), kind)
	}
}

func (s *Scanner) record(r Report) {
	count, maxPct := arbitrage.Summary(r.Opportunities)
	s.log.LogEvent("scan_result", map[string]interface{}{
		"cycle_id":      r.CycleID,
		"status":        string(r.Status),
		"opportunities": count,
		"max_abs_pct":   maxPct,
		"threshold_pct": r.ThresholdPct,
		"policy":        string(r.Policy),
		"duration_ms":   r.DurationMs,
		"quotes":        r.Quotes,
		"summary":       r.Summary(),
	})
	for _, o := range r.Opportunities {
		s.log.LogOpportunity(r.CycleID, map[string]interface{}{
			"pair":       o.Pair.String(),
			"policy":     string(o.Policy),
			"direction":  string(o.Direction),
			"profit_pct": o.ProfitPct,
			"price_a":    o.PriceA,
			"price_b":    o.PriceB,
		})
	}
	if s.mon != nil {
		s.mon.RecordScan(string(r.Status), float64(r.DurationMs)/1000, count, maxPct, float64(s.now().Unix()))
		for _, o := range r.Opportunities {
			s.mon.RecordOpportunity(o.Pair.String())
		}
	}
	s.sendAlerts(r)
}

func (s *Scanner) sendAlerts(r Report) {
	if s.alerts == nil {
		return
	}
	if r.Status == StatusUnavailable {
		_ = s.alerts.SendAlert(alert.Alert{
			Level:   alert.LevelError,
			Message: r.Summary(),
			Key:     "scan:unavailable",
			Fields:  map[string]interface{}{"cycle_id": r.CycleID},
		})
		return
	}
	for _, o := range r.Opportunities {
		_ = s.alerts.SendAlert(alert.Alert{
			Level:   alert.LevelWarning,
			Message: o.String(),
			Key:     fmt.Sprintf("opp:%s:%s", o.Pair, o.Direction),
			Fields: map[string]interface{}{
				"cycle_id":   r.CycleID,
				"profit_pct": o.ProfitPct,
			},
		})
	}
}

// Run 立即执行一次扫描，之后按当前间隔循环；每个周期结束后重新计时，
// 参数变化时按新间隔重新安排下一次扫描。ctx 取消时返回 ctx.Err()。
func (s *Scanner) Run(ctx context.Context) error {
	for {
		started := s.now()
		s.ScanOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.waitNext(ctx, started); err != nil {
			return err
		}
	}
}

func (s *Scanner) waitNext(ctx context.Context, lastStart time.Time) error {
	for {
		wait := s.settings.Snapshot().Interval() - s.now().Sub(lastStart)
		if wait <= 0 {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			return nil
		case <-s.settings.Changed():
			timer.Stop()
		}
	}
}

// Start 后台运行扫描循环（生命周期组件）。
func (s *Scanner) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return errors.New("scanner already running")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	go func(done chan struct{}) {
		defer close(done)
		if err := s.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.LogError(err, map[string]interface{}{"component": "scanner"})
		}
	}(s.done)
	return nil
}

// Stop 停止扫描循环并等待当前周期结束。
func (s *Scanner) Stop(ctx context.Context) error {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.runMu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Health 未运行或报告过期时返回错误。
func (s *Scanner) Health() error {
	s.runMu.Lock()
	running := s.running
	s.runMu.Unlock()
	if !running {
		return errors.New("scanner not running")
	}
	r, ok := s.Latest()
	if !ok {
		return nil
	}
	limit := staleFactor * s.settings.Snapshot().Interval()
	if age := s.now().Sub(r.StartedAt); age > limit {
		return fmt.Errorf("last scan %s ago exceeds %s", age.Truncate(time.Second), limit)
	}
	return nil
}
