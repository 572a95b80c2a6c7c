package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"arb-scanner/market"
)

// Binance 归一化 /api/v3/ticker/price 的响应：
// [{"symbol":"SOLUSDT","price":"150.00000000"}, ...]
// 交易对以无分隔符的拼接 symbol 作为 key。
type Binance struct{}

type binanceTicker struct {
	Symbol *string         `json:"symbol"`
	Price  json.RawMessage `json:"price"`
}

var _ Normalizer = Binance{}

func (b Binance) Normalize(raw []byte, watch []market.Pair) (market.PriceMap, error) {
	m, _, err := b.NormalizeStats(raw, watch)
	return m, err
}

// NormalizeStats 同 Normalize，并返回记录统计。
func (Binance) NormalizeStats(raw []byte, watch []market.Pair) (market.PriceMap, Stats, error) {
	var stats Stats
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil {
		return market.NewPriceMap(), stats, fmt.Errorf("%w: binance ticker list: %v", ErrMalformedPayload, err)
	}
	if records == nil {
		return market.NewPriceMap(), stats, fmt.Errorf("%w: binance ticker list is null", ErrMalformedPayload)
	}
	stats.Records = len(records)

	prices := make(map[string]float64, len(records))
	for _, rec := range records {
		var t binanceTicker
		if err := json.Unmarshal(rec, &t); err != nil || t.Symbol == nil {
			stats.Skipped++
			continue
		}
		price, ok := parsePrice(t.Price)
		if !ok {
			stats.Skipped++
			continue
		}
		symbol := strings.ToUpper(strings.TrimSpace(*t.Symbol))
		if _, dup := prices[symbol]; dup {
			continue
		}
		prices[symbol] = price
	}

	out := market.NewPriceMap()
	for _, p := range watch {
		price, ok := prices[p.Concat()]
		if !ok {
			continue
		}
		if out.Add(market.Quote{Pair: p, Price: price, Venue: market.VenueBinance}) {
			stats.Matched++
		}
	}
	return out, stats, nil
}
