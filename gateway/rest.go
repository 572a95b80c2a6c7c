package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultMaxBodyBytes Raydium 的流动性快照较大，默认上限 128MB。
	DefaultMaxBodyBytes int64 = 128 << 20
	// statusBodySnippet 错误信息中保留的响应体长度。
	statusBodySnippet = 256
)

// NewHTTPClient 使用指定超时构建 http.Client。
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// getRaw 发起 GET 请求并返回原始响应体；非 2xx 返回 *StatusError，
// 响应体超过 maxBody（<=0 时取默认值）返回 ErrTransport，不做截断。
func getRaw(ctx context.Context, cli *http.Client, limiter RateLimiter, endpoint string, maxBody int64) ([]byte, error) {
	if cli == nil {
		return nil, fmt.Errorf("%w: http client not set", ErrTransport)
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limiter: %v", ErrTransport, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if int64(len(body)) > maxBody {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrTransport, maxBody)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > statusBodySnippet {
			snippet = snippet[:statusBodySnippet]
		}
		return nil, &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: snippet}
	}
	return body, nil
}
