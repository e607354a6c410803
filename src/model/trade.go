package model

import "time"

// Trade is the immutable record of one closed position. Exactly one row is
// appended when a position goes back to flat; rows are never edited or
// reordered afterwards.
type Trade struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Symbol      string    `gorm:"type:varchar(50);not null;index:idx_trades_symbol" json:"symbol"`
	Side        Direction `gorm:"type:varchar(10);not null;index:idx_trades_side" json:"side"`
	EntryPrice  float64   `gorm:"not null" json:"entry_price"`
	ExitPrice   float64   `gorm:"not null" json:"exit_price"`
	Size        float64   `gorm:"not null" json:"size"`
	Pnl         float64   `gorm:"not null" json:"pnl"`
	OpenedAt    time.Time `gorm:"not null" json:"opened_at"`
	ClosedAt    time.Time `gorm:"not null;index:idx_trades_closed_at" json:"closed_at"`
	StrategyTag string    `gorm:"type:varchar(30);not null" json:"strategy_tag"`
	ExitReason  string    `gorm:"type:varchar(30);not null" json:"exit_reason"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t Trade) IsWin() bool {
	return t.Pnl > 0
}
