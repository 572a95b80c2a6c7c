package arbitrage

import (
	"fmt"
	"strings"

	"arb-scanner/market"
)

// Policy 价差判定策略。两种策略不等价，部署时需显式选择。
type Policy string

const (
	// PolicySigned 只比较单一价差的绝对值，不给出买卖方向。
	PolicySigned Policy = "signed"
	// PolicyDirectional 分别计算两个方向的收益率，超过阈值的方向即为机会。
	PolicyDirectional Policy = "directional"
)

// ParsePolicy 解析配置中的策略名，大小写不敏感。
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicySigned:
		return PolicySigned, nil
	case PolicyDirectional:
		return PolicyDirectional, nil
	default:
		return "", fmt.Errorf("unknown arbitrage policy %q", s)
	}
}

// Direction 买卖方向。
type Direction string

const (
	DirectionNone Direction = ""
	// DirectionBuyAtA 在 A 买入，在 B 卖出。
	DirectionBuyAtA Direction = "BUY_A_SELL_B"
	// DirectionBuyAtB 在 B 买入，在 A 卖出。
	DirectionBuyAtB Direction = "BUY_B_SELL_A"
)

// Opportunity 单个周期内发现的跨交易所价差，不做持久化。
type Opportunity struct {
	Pair      market.Pair  `json:"pair"`
	Policy    Policy       `json:"policy"`
	Direction Direction    `json:"direction,omitempty"`
	BuyVenue  market.Venue `json:"buy_venue,omitempty"`
	SellVenue market.Venue `json:"sell_venue,omitempty"`
	BuyPrice  float64      `json:"buy_price,omitempty"`
	SellPrice float64      `json:"sell_price,omitempty"`
	VenueA    market.Venue `json:"venue_a"`
	VenueB    market.Venue `json:"venue_b"`
	PriceA    float64      `json:"price_a"`
	PriceB    float64      `json:"price_b"`
	// ProfitPct 保留两位小数；signed 策略下为带符号的 (B-A)/A 百分比。
	ProfitPct float64 `json:"profit_pct"`
}

func (o Opportunity) String() string {
	if o.Direction == DirectionNone {
		return fmt.Sprintf("%s %s=%g %s=%g diff=%.2f%%", o.Pair, o.VenueA, o.PriceA, o.VenueB, o.PriceB, o.ProfitPct)
	}
	return fmt.Sprintf("%s buy@%s %g sell@%s %g profit=%.2f%%", o.Pair, o.BuyVenue, o.BuyPrice, o.SellVenue, o.SellPrice, o.ProfitPct)
}
