package scanner

import (
	"fmt"
	"time"

	"arb-scanner/arbitrage"
	"arb-scanner/market"
)

// Status 扫描周期状态。
type Status string

const (
	StatusOK          Status = "ok"
	StatusPartial     Status = "partial"     // 一个交易所拉取失败
	StatusUnavailable Status = "unavailable" // 两个交易所都失败
)

// VenueError 报告中的拉取错误。
type VenueError struct {
	Venue   market.Venue `json:"venue"`
	Kind    string       `json:"kind"`
	Message string       `json:"message"`
}

// Report 一个扫描周期的结果，渲染后即丢弃，只保留最近一份供看板读取。
type Report struct {
	CycleID       string                  `json:"cycle_id"`
	StartedAt     time.Time               `json:"started_at"`
	DurationMs    int64                   `json:"duration_ms"`
	ThresholdPct  float64                 `json:"threshold_pct"`
	Policy        arbitrage.Policy        `json:"policy"`
	Watched       int                     `json:"watched"`
	Quotes        map[market.Venue]int    `json:"quotes"`
	Errors        []VenueError            `json:"errors,omitempty"`
	Opportunities []arbitrage.Opportunity `json:"opportunities"`
	Status        Status                  `json:"status"`
}

// Summary 一句话概述本周期结果。
func (r Report) Summary() string {
	switch {
	case r.Status == StatusUnavailable:
		return "error fetching prices, retrying next cycle"
	case len(r.Opportunities) == 1:
		return "found 1 arbitrage opportunity"
	case len(r.Opportunities) > 1:
		return fmt.Sprintf("found %d arbitrage opportunities", len(r.Opportunities))
	default:
		return "no arbitrage opportunities found"
	}
}

func statusFor(errs int) Status {
	switch errs {
	case 0:
		return StatusOK
	case 1:
		return StatusPartial
	default:
		return StatusUnavailable
	}
}
