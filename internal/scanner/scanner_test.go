package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arb-scanner/arbitrage"
	"arb-scanner/config"
	"arb-scanner/gateway"
	"arb-scanner/infrastructure/alert"
	"arb-scanner/infrastructure/monitor"
	"arb-scanner/market"
	"arb-scanner/normalize"
)

const (
	binanceBody = `[{"symbol":"SOLUSDT","price":"150.00"},{"symbol":"BTCUSDT","price":"60000.00"},{"symbol":"BONKUSDT","price":"0.00002"}]`
	raydiumBody = `{"official":[
		{"base":{"symbol":"WSOL"},"quote":{"symbol":"USDC"},"price":153.5},
		{"base":{"symbol":"BTC"},"quote":{"symbol":"USDC"},"price":60100},
		{"base":{"symbol":"RAY"},"quote":{"symbol":"USDC"},"price":2.1}
	]}`
)

func staticFetch(body string) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return []byte(body), nil
	}
}

func failingFetch(err error) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return nil, err
	}
}

func newTestScanner(t *testing.T, cex, dex FetchFunc, alerts *alert.Manager) *Scanner {
	t.Helper()
	settings, err := NewSettings(config.ScanConfig{ThresholdPct: 1, IntervalSec: 10, Policy: "directional"})
	require.NoError(t, err)
	watch, err := market.ParseWatchList([]string{"SOL/USDT", "BTC/USDT", "BONK/USDT"})
	require.NoError(t, err)
	s, err := New(Options{
		CEX:      Source{Venue: market.VenueBinance, Fetch: cex, Normalizer: normalize.Binance{}},
		DEX:      Source{Venue: market.VenueRaydium, Fetch: dex, Normalizer: normalize.Raydium{Aliases: normalize.DefaultAliases()}},
		Watch:    watch,
		Settings: settings,
		Monitor:  monitor.New(monitor.DefaultConfig()),
		Alerts:   alerts,
	})
	require.NoError(t, err)
	return s
}

func TestScanOnceFindsOpportunity(t *testing.T) {
	mock := alert.NewMockChannel("mock")
	s := newTestScanner(t, staticFetch(binanceBody), staticFetch(raydiumBody), alert.NewManager([]alert.Channel{mock}, 0))
	sub := s.Publisher().Subscribe()

	r := s.ScanOnce(context.Background())

	assert.Equal(t, StatusOK, r.Status)
	assert.NotEmpty(t, r.CycleID)
	assert.Empty(t, r.Errors)
	assert.Equal(t, 3, r.Watched)
	assert.Equal(t, 3, r.Quotes[market.VenueBinance])
	assert.Equal(t, 2, r.Quotes[market.VenueRaydium])
	require.Len(t, r.Opportunities, 1)

	o := r.Opportunities[0]
	assert.Equal(t, market.NewPair("SOL", "USDT"), o.Pair)
	assert.Equal(t, arbitrage.DirectionBuyAtA, o.Direction)
	assert.Equal(t, market.VenueBinance, o.BuyVenue)
	assert.Equal(t, market.VenueRaydium, o.SellVenue)
	assert.Equal(t, 2.33, o.ProfitPct)
	assert.Equal(t, "found 1 arbitrage opportunity", r.Summary())

	select {
	case got := <-sub:
		assert.Equal(t, r.CycleID, got.CycleID)
	default:
		t.Fatal("report not published")
	}

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, r.CycleID, latest.CycleID)

	alerts := mock.GetAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.LevelWarning, alerts[0].Level)
}

func TestScanOncePartialWhenOneVenueFails(t *testing.T) {
	s := newTestScanner(t,
		failingFetch(fmt.Errorf("%w: connection refused", gateway.ErrTransport)),
		staticFetch(raydiumBody), nil)

	r := s.ScanOnce(context.Background())

	assert.Equal(t, StatusPartial, r.Status)
	assert.Empty(t, r.Opportunities)
	assert.NotNil(t, r.Opportunities)
	assert.Equal(t, 0, r.Quotes[market.VenueBinance])
	require.Len(t, r.Errors, 1)
	assert.Equal(t, market.VenueBinance, r.Errors[0].Venue)
	assert.Equal(t, KindTransport, r.Errors[0].Kind)
	assert.Equal(t, "no arbitrage opportunities found", r.Summary())
}

func TestScanOnceUnavailableSendsErrorAlert(t *testing.T) {
	mock := alert.NewMockChannel("mock")
	s := newTestScanner(t,
		failingFetch(&gateway.StatusError{Endpoint: "ticker", Code: 503}),
		staticFetch(`{"unexpected":true}`),
		alert.NewManager([]alert.Channel{mock}, time.Minute))

	r := s.ScanOnce(context.Background())
	assert.Equal(t, StatusUnavailable, r.Status)
	require.Len(t, r.Errors, 2)
	assert.Equal(t, KindStatus, r.Errors[0].Kind)
	assert.Equal(t, KindMalformed, r.Errors[1].Kind)

	// 第二次同类告警被节流
	s.ScanOnce(context.Background())
	alerts := mock.GetAlerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, alert.LevelError, alerts[0].Level)
	assert.Equal(t, "error fetching prices, retrying next cycle", alerts[0].Message)
}

func TestScanOnceUsesCurrentSettings(t *testing.T) {
	s := newTestScanner(t, staticFetch(binanceBody), staticFetch(raydiumBody), nil)

	require.NoError(t, s.Settings().ApplyParameters(map[string]interface{}{
		"threshold_pct": 0.1,
		"policy":        "signed",
	}))
	r := s.ScanOnce(context.Background())

	assert.Equal(t, arbitrage.PolicySigned, r.Policy)
	require.Len(t, r.Opportunities, 2)
	assert.Equal(t, "SOL/USDT", r.Opportunities[0].Pair.String())
	assert.Equal(t, "BTC/USDT", r.Opportunities[1].Pair.String())
	assert.Equal(t, 0.17, r.Opportunities[1].ProfitPct)
}

func TestFetchErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: eof", gateway.ErrTransport), KindTransport},
		{&gateway.StatusError{Code: 429}, KindStatus},
		{fmt.Errorf("%w: bad json", normalize.ErrMalformedPayload), KindMalformed},
		{context.DeadlineExceeded, KindTransport},
		{errors.New("boom"), KindUnknown},
	}
	for _, tc := range cases {
		fe := &FetchError{Venue: market.VenueRaydium, Err: tc.err}
		assert.Equal(t, tc.want, fe.Kind(), tc.err.Error())
		assert.ErrorIs(t, fe, tc.err)
	}
}

func TestSourceUnconfigured(t *testing.T) {
	m, _, err := Source{Venue: market.VenueBinance}.Quotes(context.Background(), nil)
	assert.Error(t, err)
	assert.Empty(t, m)
}

func TestStartStopHealth(t *testing.T) {
	s := newTestScanner(t, staticFetch(binanceBody), staticFetch(raydiumBody), nil)
	assert.Error(t, s.Health())

	sub := s.Publisher().Subscribe()
	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	select {
	case r := <-sub:
		assert.Equal(t, StatusOK, r.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("first scan did not run immediately")
	}
	assert.NoError(t, s.Health())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Error(t, s.Health())
	assert.NoError(t, s.Stop(ctx))
}

func TestHealthStale(t *testing.T) {
	s := newTestScanner(t, staticFetch(binanceBody), staticFetch(raydiumBody), nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.ScanOnce(context.Background())
	s.running = true

	s.now = func() time.Time { return base.Add(29 * time.Second) }
	assert.NoError(t, s.Health())
	s.now = func() time.Time { return base.Add(31 * time.Second) }
	assert.Error(t, s.Health())
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	settings, err := NewSettings(config.ScanConfig{ThresholdPct: 1, IntervalSec: 10, Policy: "signed"})
	require.NoError(t, err)
	_, err = New(Options{Settings: settings})
	assert.Error(t, err)
}
