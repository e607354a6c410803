package model

import "time"

const (
	PositionStatusFlat     = "flat"
	PositionStatusEntering = "entering"
	PositionStatusOpen     = "open"
	PositionStatusExiting  = "exiting"
)

// Position is the live per-symbol position. At most one non-flat Position
// exists per symbol; it is mutated only by the position manager.
type Position struct {
	Symbol      string    `json:"symbol"`
	Side        Direction `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	Size        float64   `json:"size"`
	StopLevel   float64   `json:"stop_level"`
	OpenedAt    time.Time `json:"opened_at"`
	StrategyTag string    `json:"strategy_tag"`
	Status      string    `json:"status"`
}

func (p *Position) IsFlat() bool {
	return p == nil || p.Status == PositionStatusFlat
}

// UnrealizedPnl is (price - entry) * size * direction sign.
func (p *Position) UnrealizedPnl(currentPrice float64) float64 {
	if p.IsFlat() {
		return 0
	}
	return (currentPrice - p.EntryPrice) * p.Size * p.Side.Sign()
}

// UnrealizedPnlPct is the unrealized return in percent of the entry price.
func (p *Position) UnrealizedPnlPct(currentPrice float64) float64 {
	if p.IsFlat() || p.EntryPrice == 0 {
		return 0
	}
	if p.Side == DirectionShort {
		return ((p.EntryPrice - currentPrice) / p.EntryPrice) * 100
	}
	return ((currentPrice - p.EntryPrice) / p.EntryPrice) * 100
}
