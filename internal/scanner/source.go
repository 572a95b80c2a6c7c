package scanner

import (
	"context"
	"errors"
	"fmt"

	"arb-scanner/gateway"
	"arb-scanner/market"
	"arb-scanner/normalize"
)

// 拉取错误分类
const (
	KindTransport = "transport"
	KindStatus    = "status"
	KindMalformed = "malformed"
	KindUnknown   = "unknown"
)

// FetchError 单个交易所本周期拉取或解析失败；该交易所报价表为空，下一周期自动重试。
type FetchError struct {
	Venue market.Venue
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Venue, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Kind 返回错误类别。
func (e *FetchError) Kind() string {
	switch {
	case errors.Is(e.Err, gateway.ErrHTTPStatus):
		return KindStatus
	case errors.Is(e.Err, gateway.ErrTransport),
		errors.Is(e.Err, context.Canceled),
		errors.Is(e.Err, context.DeadlineExceeded):
		return KindTransport
	case errors.Is(e.Err, normalize.ErrMalformedPayload):
		return KindMalformed
	default:
		return KindUnknown
	}
}

// StatsNormalizer 归一化并返回统计。
type StatsNormalizer interface {
	NormalizeStats(raw []byte, watch []market.Pair) (market.PriceMap, normalize.Stats, error)
}

// FetchFunc 拉取交易所原始响应体。
type FetchFunc func(ctx context.Context) ([]byte, error)

// Source 一个交易所：拉取 + 归一化。
type Source struct {
	Venue      market.Venue
	Fetch      FetchFunc
	Normalizer StatsNormalizer
}

// BinanceSource 组装 Binance 现货行情源。
func BinanceSource(cli *gateway.BinanceRESTClient) Source {
	return Source{
		Venue:      market.VenueBinance,
		Fetch:      cli.TickerPrices,
		Normalizer: normalize.Binance{},
	}
}

// RaydiumSource 组装 Raydium 流动性池行情源。
func RaydiumSource(cli *gateway.RaydiumRESTClient, n normalize.Raydium) Source {
	return Source{
		Venue:      market.VenueRaydium,
		Fetch:      cli.LiquidityPools,
		Normalizer: n,
	}
}

// Quotes 拉取并归一化；任何失败都返回空报价表与 *FetchError，不会向调用方抛出 panic。
func (s Source) Quotes(ctx context.Context, watch []market.Pair) (market.PriceMap, normalize.Stats, error) {
	if s.Fetch == nil || s.Normalizer == nil {
		return market.NewPriceMap(), normalize.Stats{}, &FetchError{Venue: s.Venue, Err: errors.New("source not configured")}
	}
	raw, err := s.Fetch(ctx)
	if err != nil {
		return market.NewPriceMap(), normalize.Stats{}, &FetchError{Venue: s.Venue, Err: err}
	}
	m, stats, err := s.Normalizer.NormalizeStats(raw, watch)
	if err != nil {
		return market.NewPriceMap(), stats, &FetchError{Venue: s.Venue, Err: err}
	}
	return m, stats, nil
}
