package gateway

import (
	"context"
	"net/http"
	"strings"
)

const (
	BinanceSpotRESTEndpoint = "https://api.binance.com"
	binanceTickerPricePath  = "/api/v3/ticker/price"
)

// BinanceRESTClient 只读的现货行情客户端，不需要签名；HTTPClient 可注入 httptest。
type BinanceRESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter
	// MaxBodyBytes 响应体上限，0 表示 DefaultMaxBodyBytes
	MaxBodyBytes int64
}

// TickerPrices 调用 /api/v3/ticker/price，返回全部交易对最新价的原始响应体。
func (c *BinanceRESTClient) TickerPrices(ctx context.Context) ([]byte, error) {
	base := BinanceSpotRESTEndpoint
	if c != nil && c.BaseURL != "" {
		base = strings.TrimRight(c.BaseURL, "/")
	}
	var (
		cli     *http.Client
		limiter RateLimiter
		maxBody int64
	)
	if c != nil {
		cli, limiter, maxBody = c.HTTPClient, c.Limiter, c.MaxBodyBytes
	}
	return getRaw(ctx, cli, limiter, base+binanceTickerPricePath, maxBody)
}
