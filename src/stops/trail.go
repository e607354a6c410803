package stops

import (
	"github.com/shopspring/decimal"

	"tradingbot/src/model"
)

func isBullish(c model.Candle) bool { return c.Close.GreaterThan(c.Open) }
func isBearish(c model.Candle) bool { return c.Close.LessThan(c.Open) }

func avgLow(candles []model.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.Low)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candles))))
}

func avgHigh(candles []model.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range candles {
		sum = sum.Add(c.High)
	}
	return sum.Div(decimal.NewFromInt(int64(len(candles))))
}

// NextTrailingStop moves the stop of an open position toward price, never
// away from it.
//
// Long:
// - gate: previous candle bullish
// - floor: avg(low) over lookback
// - clamp: candidate <= prev.Low
// - update: stop = max(stop, candidate)
//
// Short:
// - gate: previous candle bearish
// - ceiling: avg(high) over lookback
// - clamp: candidate >= prev.High
// - update: stop = min(stop, candidate)
func NextTrailingStop(
	side model.Direction,
	currentStop decimal.Decimal,
	candles []model.Candle,
	lookback int,
) (newStop decimal.Decimal, moved bool) {
	if len(candles) < 2 {
		return currentStop, false
	}
	if lookback <= 0 {
		lookback = 20
	}
	if lookback > len(candles) {
		lookback = len(candles)
	}

	prev := candles[len(candles)-2]
	window := candles[len(candles)-lookback:]

	switch side {
	case model.DirectionLong:
		if !isBullish(prev) {
			return currentStop, false
		}
		floorAvg := avgLow(window)

		candidate := floorAvg
		if candidate.GreaterThan(prev.Low) {
			candidate = prev.Low
		}

		if candidate.GreaterThan(currentStop) {
			return candidate, true
		}
		return currentStop, false

	case model.DirectionShort:
		if !isBearish(prev) {
			return currentStop, false
		}
		ceilAvg := avgHigh(window)

		candidate := ceilAvg
		// Do not set a short stop below the last bearish candle high
		if candidate.LessThan(prev.High) {
			candidate = prev.High
		}

		// Stop only moves down for shorts
		if candidate.LessThan(currentStop) {
			return candidate, true
		}
		return currentStop, false

	default:
		return currentStop, false
	}
}
