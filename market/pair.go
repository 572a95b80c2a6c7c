package market

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPair 交易对格式不合法（缺少 "/" 或 base/quote 为空）。
var ErrInvalidPair = errors.New("invalid pair")

// Venue 价格来源。
type Venue string

const (
	VenueBinance Venue = "binance"
	VenueRaydium Venue = "raydium"
)

func (v Venue) String() string { return string(v) }

// Pair 规范化交易对：base/quote 全大写，与任何交易所的原生写法无关。
type Pair struct {
	Base  string
	Quote string
}

// NewPair 构造规范化交易对。
func NewPair(base, quote string) Pair {
	return Pair{
		Base:  canonicalSymbol(base),
		Quote: canonicalSymbol(quote),
	}
}

// ParsePair 解析 "BASE/QUOTE" 形式的字符串，大小写不敏感。
func ParsePair(s string) (Pair, error) {
	base, quote, ok := strings.Cut(s, "/")
	if !ok {
		return Pair{}, fmt.Errorf("%w: %q missing '/'", ErrInvalidPair, s)
	}
	p := NewPair(base, quote)
	if p.Base == "" || p.Quote == "" {
		return Pair{}, fmt.Errorf("%w: %q", ErrInvalidPair, s)
	}
	if strings.Contains(p.Quote, "/") {
		return Pair{}, fmt.Errorf("%w: %q has more than one '/'", ErrInvalidPair, s)
	}
	return p, nil
}

// String 返回 "BASE/QUOTE"。
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Concat 返回中心化交易所使用的无分隔符 symbol，例如 SOLUSDT。
func (p Pair) Concat() string {
	return p.Base + p.Quote
}

// MarshalText lets Pair be used as a JSON string and map key.
func (p Pair) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Pair) UnmarshalText(b []byte) error {
	parsed, err := ParsePair(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParseWatchList 按顺序解析监控列表，重复的交易对只保留第一次出现。
func ParseWatchList(raw []string) ([]Pair, error) {
	seen := make(map[Pair]struct{}, len(raw))
	out := make([]Pair, 0, len(raw))
	for _, s := range raw {
		p, err := ParsePair(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

func canonicalSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
