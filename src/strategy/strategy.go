package strategy

import (
	"tradingbot/src/model"
)

// State is the ledger-derived context a strategy needs beyond the bar
// window. The caller assembles it fresh for every evaluation; strategies
// keep no mutable state of their own between cycles.
type State struct {
	// Position is the live position for the symbol, nil or flat when none.
	Position *model.Position

	// SkipWinLong / SkipWinShort arm the turtle filter: the immediately
	// preceding closed trade in that direction was a winner and the next
	// entry signal in the same direction must be suppressed. The caller
	// derives these from the trade ledger and clears them once a signal
	// has been suppressed.
	SkipWinLong  bool
	SkipWinShort bool
}

// Strategy turns a rolling window of closed bars into a Signal.
type Strategy interface {
	Name() string

	// MinBars is the window length required before Evaluate can produce a
	// non-flat signal. With fewer bars Evaluate holds, deterministically.
	MinBars() int

	Evaluate(window []model.Candle, state State) model.Signal
}

func closeOf(c model.Candle) float64 {
	f, _ := c.Close.Float64()
	return f
}

// highestHigh returns the maximum high over the given bars.
func highestHigh(bars []model.Candle) float64 {
	var max float64
	for i, c := range bars {
		h, _ := c.High.Float64()
		if i == 0 || h > max {
			max = h
		}
	}
	return max
}

// lowestLow returns the minimum low over the given bars.
func lowestLow(bars []model.Candle) float64 {
	var min float64
	for i, c := range bars {
		l, _ := c.Low.Float64()
		if i == 0 || l < min {
			min = l
		}
	}
	return min
}

// sma is the simple moving average of the last period closes.
func sma(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period {
		return 0
	}
	sum := 0.0
	for _, c := range closes[len(closes)-period:] {
		sum += c
	}
	return sum / float64(period)
}
