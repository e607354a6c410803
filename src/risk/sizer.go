package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidRiskInput marks sizing inputs that cannot produce a trade.
// Callers treat it as "no trade this cycle", not as a retryable failure.
var ErrInvalidRiskInput = errors.New("invalid risk input")

type SizerConfig struct {
	// RiskPerTrade is the fraction of equity allowed to be lost if the
	// stop level is hit, e.g. 0.01 for one percent.
	RiskPerTrade decimal.Decimal

	// MaxPositionSize caps the computed size in base-asset units,
	// independent of the risk formula. Zero disables the cap.
	MaxPositionSize decimal.Decimal

	// MinOrderSize is the smallest tradable increment. A computed size
	// below it is rounded down to zero, meaning no trade.
	MinOrderSize decimal.Decimal
}

func DefaultSizerConfig() SizerConfig {
	return SizerConfig{
		RiskPerTrade:    decimal.NewFromFloat(0.01),
		MaxPositionSize: decimal.NewFromFloat(1000),
		MinOrderSize:    decimal.Zero,
	}
}

type Sizer struct {
	cfg SizerConfig
}

func NewSizer(cfg SizerConfig) *Sizer {
	return &Sizer{cfg: cfg}
}

// Size converts equity and the entry/stop pair into a position size in
// base-asset units:
//
//	size = (equity * riskPerTrade) / |entry - stop|
//
// clamped to MaxPositionSize. A degenerate stop distance or non-positive
// equity yields ErrInvalidRiskInput.
func (s *Sizer) Size(equity, entryPrice, stopReference decimal.Decimal) (decimal.Decimal, error) {
	if equity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: equity %s must be positive", ErrInvalidRiskInput, equity)
	}

	stopDistance := entryPrice.Sub(stopReference).Abs()
	if stopDistance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("%w: stop distance is zero for entry %s / stop %s",
			ErrInvalidRiskInput, entryPrice, stopReference)
	}

	size := equity.Mul(s.cfg.RiskPerTrade).Div(stopDistance)

	if s.cfg.MaxPositionSize.GreaterThan(decimal.Zero) && size.GreaterThan(s.cfg.MaxPositionSize) {
		size = s.cfg.MaxPositionSize
	}

	if size.LessThan(s.cfg.MinOrderSize) {
		return decimal.Zero, nil
	}

	return size, nil
}
