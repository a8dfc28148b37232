package models

import "time"

type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position — simulated trade for one symbol. At most one open position per
// symbol exists at any time; closing is terminal.
type Position struct {
	ID         int64
	Symbol     string
	Strategy   string
	EntryPrice float64
	ExitPrice  float64
	// CurrentPrice and MaxPrice are refreshed on every tick while open.
	// Sell rules may reference MaxPrice (trailing-stop style).
	CurrentPrice float64
	MaxPrice     float64
	Quantity     float64
	Invested     float64
	EntryTime    time.Time
	ExitTime     time.Time
	// DurationMin and ResultPct are set once on close.
	DurationMin float64
	ResultPct   float64
	Status      PositionStatus
}

// Performance — per-symbol aggregate trade counters, used by the regulator
// to order eviction and admission candidates.
type Performance struct {
	Wins        int
	Losses      int
	TotalProfit float64
	LossStreak  int
}

func (p Performance) WinRate() float64 {
	total := p.Wins + p.Losses
	if total == 0 {
		return 0
	}
	return float64(p.Wins) / float64(total) * 100
}
