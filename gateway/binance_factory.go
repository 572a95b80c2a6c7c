package gateway

import (
	"net/http"
	"time"
)

// ClientOptions 构建两个行情客户端所需的参数。
type ClientOptions struct {
	BinanceURL string
	RaydiumURL string
	Timeout    time.Duration
	RestRate   float64 // 每秒令牌数
	RestBurst  int
	// MaxBodyBytes 单个响应体上限，0 使用默认值
	MaxBodyBytes int64
}

// BuildVenueClients 构建 Binance/Raydium REST 客户端；两者共用一个 http.Client，
// 各自持有独立的令牌桶。调用方可传入自定义 http.Client（带代理/超时），否则使用默认。
func BuildVenueClients(opts ClientOptions, httpCli *http.Client) (*BinanceRESTClient, *RaydiumRESTClient) {
	if httpCli == nil {
		httpCli = NewHTTPClient(opts.Timeout)
	}
	binance := &BinanceRESTClient{
		BaseURL:      opts.BinanceURL,
		HTTPClient:   httpCli,
		Limiter:      NewTokenBucketLimiter(opts.RestRate, opts.RestBurst),
		MaxBodyBytes: opts.MaxBodyBytes,
	}
	raydium := &RaydiumRESTClient{
		BaseURL:      opts.RaydiumURL,
		HTTPClient:   httpCli,
		Limiter:      NewTokenBucketLimiter(opts.RestRate, opts.RestBurst),
		MaxBodyBytes: opts.MaxBodyBytes,
	}
	return binance, raydium
}
