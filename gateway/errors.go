package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport 网络层失败（DNS、连接、超时、读取响应体）。
	ErrTransport = errors.New("transport failure")
	// ErrHTTPStatus 上游返回非 2xx 状态码。
	ErrHTTPStatus = errors.New("unexpected http status")
)

// StatusError 携带上游状态码与响应片段。
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrHTTPStatus }
