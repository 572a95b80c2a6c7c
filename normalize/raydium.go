package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"arb-scanner/market"
)

// DefaultAliases 默认的符号替换：链上包装资产与稳定币写法对齐到监控列表。
func DefaultAliases() map[string]string {
	return map[string]string{
		"WSOL": "SOL",
		"USDC": "USDT",
	}
}

// Raydium 归一化 /v2/sdk/liquidity/mainnet.json：
// {"official":[{"base":{"symbol":"SOL"},"quote":{"symbol":"USDC"},"price":150.1}], "unOfficial":[...]}
type Raydium struct {
	// Aliases 在匹配前应用于 base 与 quote，key/value 不区分大小写。
	Aliases map[string]string
	// IncludeUnofficial 同时读取 unOfficial 池列表。
	IncludeUnofficial bool
}

type raydiumToken struct {
	Symbol string `json:"symbol"`
}

type raydiumPool struct {
	Base  *raydiumToken   `json:"base"`
	Quote *raydiumToken   `json:"quote"`
	Price json.RawMessage `json:"price"`
}

var _ Normalizer = Raydium{}

func (r Raydium) Normalize(raw []byte, watch []market.Pair) (market.PriceMap, error) {
	m, _, err := r.NormalizeStats(raw, watch)
	return m, err
}

// NormalizeStats 同 Normalize，并返回记录统计。
func (r Raydium) NormalizeStats(raw []byte, watch []market.Pair) (market.PriceMap, Stats, error) {
	var stats Stats
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return market.NewPriceMap(), stats, fmt.Errorf("%w: raydium liquidity document: %v", ErrMalformedPayload, err)
	}
	if doc == nil {
		return market.NewPriceMap(), stats, fmt.Errorf("%w: raydium liquidity document is null", ErrMalformedPayload)
	}

	lists := []string{"official"}
	if r.IncludeUnofficial {
		lists = append(lists, "unOfficial")
	}
	var pools []json.RawMessage
	for _, key := range lists {
		section, ok := doc[key]
		if !ok {
			if key == "official" {
				return market.NewPriceMap(), stats, fmt.Errorf("%w: raydium document has no %q list", ErrMalformedPayload, key)
			}
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(section, &items); err != nil || items == nil {
			return market.NewPriceMap(), stats, fmt.Errorf("%w: raydium %q is not a list", ErrMalformedPayload, key)
		}
		pools = append(pools, items...)
	}
	stats.Records = len(pools)

	wanted := watchSet(watch)
	aliases := upperAliases(r.Aliases)
	out := market.NewPriceMap()
	for _, rec := range pools {
		var pool raydiumPool
		if err := json.Unmarshal(rec, &pool); err != nil || pool.Base == nil || pool.Quote == nil {
			stats.Skipped++
			continue
		}
		pair := market.NewPair(alias(aliases, pool.Base.Symbol), alias(aliases, pool.Quote.Symbol))
		if pair.Base == "" || pair.Quote == "" {
			stats.Skipped++
			continue
		}
		if _, ok := wanted[pair]; !ok {
			continue
		}
		price, ok := parsePrice(pool.Price)
		if !ok {
			stats.Skipped++
			continue
		}
		// 同一交易对多个池时保留第一个有效报价
		if _, seen := out[pair]; seen {
			continue
		}
		if out.Add(market.Quote{Pair: pair, Price: price, Venue: market.VenueRaydium}) {
			stats.Matched++
		}
	}
	return out, stats, nil
}

func upperAliases(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return out
}

func alias(aliases map[string]string, symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if to, ok := aliases[s]; ok {
		return to
	}
	return s
}
