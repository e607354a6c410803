package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one closed OHLCV bar. Rows are append-only: once a bar is
// persisted for (symbol, datetime) it is never rewritten with different
// values, only re-upserted identically by the backfill command.
type Candle struct {
	ID       uint            `gorm:"primaryKey"`
	Symbol   string          `json:"symbol"   gorm:"type:varchar(50);not null;uniqueIndex:ux_candles_symbol_datetime,priority:1;index:idx_candles_symbol_datetime,priority:1"`
	Datetime time.Time       `json:"datetime" gorm:"not null;uniqueIndex:ux_candles_symbol_datetime,priority:2;index:idx_candles_symbol_datetime,priority:2;index:idx_candles_datetime"`
	Open     decimal.Decimal `json:"open"   gorm:"type:double precision;not null"`
	High     decimal.Decimal `json:"high"   gorm:"type:double precision;not null"`
	Low      decimal.Decimal `json:"low"    gorm:"type:double precision;not null"`
	Close    decimal.Decimal `json:"close"  gorm:"type:double precision;not null"`
	Volume   decimal.Decimal `json:"volume" gorm:"type:double precision;not null"`
}

func (Candle) TableName() string {
	return "candles"
}
