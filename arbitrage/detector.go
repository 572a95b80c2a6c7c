// Package arbitrage 在两个交易所的报价表之间按监控列表匹配交易对，
// 计算价差百分比并按阈值筛选机会。纯函数，无 I/O，无跨周期状态。
package arbitrage

import (
	"math"

	"github.com/shopspring/decimal"

	"arb-scanner/market"
)

// Params 检测参数。
type Params struct {
	ThresholdPct float64
	Policy       Policy
}

// Detect 按监控列表顺序比较 a、b 两个报价表。
// 任一侧缺少报价的交易对直接跳过；阈值比较使用未取整的值。
func Detect(a, b market.PriceMap, watch []market.Pair, p Params) []Opportunity {
	threshold := p.ThresholdPct
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = 0
	}
	policy := p.Policy
	if policy == "" {
		policy = PolicyDirectional
	}

	out := make([]Opportunity, 0)
	seen := make(map[market.Pair]struct{}, len(watch))
	for _, pair := range watch {
		if _, dup := seen[pair]; dup {
			continue
		}
		seen[pair] = struct{}{}

		qa, ok := a.Quote(pair)
		if !ok {
			continue
		}
		qb, ok := b.Quote(pair)
		if !ok {
			continue
		}
		var (
			opp   Opportunity
			found bool
		)
		switch policy {
		case PolicySigned:
			opp, found = signed(qa, qb, threshold)
		default:
			opp, found = directional(qa, qb, threshold)
		}
		if found {
			out = append(out, opp)
		}
	}
	return out
}

// DivergencePct 返回 (b-a)/a*100，未取整。
func DivergencePct(a, b float64) float64 {
	return (b - a) / a * 100
}

func signed(qa, qb market.Quote, threshold float64) (Opportunity, bool) {
	div := DivergencePct(qa.Price, qb.Price)
	if !finite(div) || math.Abs(div) <= threshold {
		return Opportunity{}, false
	}
	opp := base(qa, qb, PolicySigned)
	opp.ProfitPct = Round2(div)
	return opp, true
}

func directional(qa, qb market.Quote, threshold float64) (Opportunity, bool) {
	up := DivergencePct(qa.Price, qb.Price)
	down := DivergencePct(qb.Price, qa.Price)
	// 极端价格比（如次正规数报价）会溢出为 Inf，无法给出有意义的收益率
	if !finite(up) || !finite(down) {
		return Opportunity{}, false
	}
	opp := base(qa, qb, PolicyDirectional)
	switch {
	case up > threshold:
		opp.Direction = DirectionBuyAtA
		opp.BuyVenue, opp.BuyPrice = qa.Venue, qa.Price
		opp.SellVenue, opp.SellPrice = qb.Venue, qb.Price
		opp.ProfitPct = Round2(up)
	case down > threshold:
		opp.Direction = DirectionBuyAtB
		opp.BuyVenue, opp.BuyPrice = qb.Venue, qb.Price
		opp.SellVenue, opp.SellPrice = qa.Venue, qa.Price
		opp.ProfitPct = Round2(down)
	default:
		return Opportunity{}, false
	}
	return opp, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func base(qa, qb market.Quote, policy Policy) Opportunity {
	return Opportunity{
		Pair:   qa.Pair,
		Policy: policy,
		VenueA: qa.Venue,
		VenueB: qb.Venue,
		PriceA: qa.Price,
		PriceB: qb.Price,
	}
}

// Round2 四舍五入到两位小数（远离零方向）；NaN 与 ±Inf 原样返回。
func Round2(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Summary 汇总一组机会：数量与最大绝对收益率。
func Summary(opps []Opportunity) (count int, maxAbsPct float64) {
	for _, o := range opps {
		if v := math.Abs(o.ProfitPct); v > maxAbsPct {
			maxAbsPct = v
		}
	}
	return len(opps), maxAbsPct
}
