// Package normalize 将各交易所原始价格列表转换为统一的 market.PriceMap。
//
// 每个交易所一个 Normalizer，输入为原始响应体与监控列表，输出结构一致。
// 顶层结构不符合预期时返回 ErrMalformedPayload 与空表；结构正确但
// 没有匹配的交易对时返回空表且不报错。
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"arb-scanner/market"
)

// ErrMalformedPayload 原始响应结构不符合预期。
var ErrMalformedPayload = errors.New("malformed payload")

// Normalizer 把单个交易所的原始响应归一化为报价表。
type Normalizer interface {
	Normalize(raw []byte, watch []market.Pair) (market.PriceMap, error)
}

// Stats 一次归一化的统计，便于日志观察上游结构漂移。
type Stats struct {
	Records int // 原始记录数
	Skipped int // 结构不完整或价格无法解析的记录数
	Matched int // 写入报价表的交易对数
}

// parsePrice 兼容字符串与数字两种价格写法；null、缺失或无法解析时 ok=false。
func parsePrice(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}

func watchSet(watch []market.Pair) map[market.Pair]struct{} {
	set := make(map[market.Pair]struct{}, len(watch))
	for _, p := range watch {
		set[p] = struct{}{}
	}
	return set
}
