package market

import "math"

// Quote 单个交易所对某交易对的报价。
type Quote struct {
	Pair  Pair    `json:"pair"`
	Price float64 `json:"price"`
	Venue Venue   `json:"venue"`
}

// Valid 报价价格必须为有限正数；0 或缺失表示无报价。
func (q Quote) Valid() bool {
	return q.Price > 0 && !math.IsInf(q.Price, 0) && !math.IsNaN(q.Price)
}

// PriceMap 单个交易所一个轮询周期内的报价表，每周期重建。
type PriceMap map[Pair]Quote

// NewPriceMap 返回空报价表。
func NewPriceMap() PriceMap {
	return make(PriceMap)
}

// Add 写入报价；非正价格被拒绝，保证表内不存在无效报价。
func (m PriceMap) Add(q Quote) bool {
	if !q.Valid() {
		return false
	}
	m[q.Pair] = q
	return true
}

// Price 返回交易对价格；不存在时 ok=false。
func (m PriceMap) Price(p Pair) (float64, bool) {
	q, ok := m[p]
	if !ok || !q.Valid() {
		return 0, false
	}
	return q.Price, true
}

// Quote 返回完整报价。
func (m PriceMap) Quote(p Pair) (Quote, bool) {
	q, ok := m[p]
	if !ok || !q.Valid() {
		return Quote{}, false
	}
	return q, true
}
