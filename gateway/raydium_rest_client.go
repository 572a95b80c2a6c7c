package gateway

import (
	"context"
	"net/http"
	"strings"
)

const (
	RaydiumRESTEndpoint  = "https://api.raydium.io"
	raydiumLiquidityPath = "/v2/sdk/liquidity/mainnet.json"
)

// RaydiumRESTClient 读取 Raydium 流动性池快照。
type RaydiumRESTClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    RateLimiter
	// MaxBodyBytes 响应体上限，0 表示 DefaultMaxBodyBytes
	MaxBodyBytes int64
}

// LiquidityPools 返回流动性池列表的原始响应体。
func (c *RaydiumRESTClient) LiquidityPools(ctx context.Context) ([]byte, error) {
	base := RaydiumRESTEndpoint
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
	return getRaw(ctx, cli, limiter, base+raydiumLiquidityPath, maxBody)
}
