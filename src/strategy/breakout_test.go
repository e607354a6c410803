package strategy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"tradingbot/src/model"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func bar(i int, high, low, close float64) model.Candle {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return model.Candle{
		Symbol:   "BTCUSDT",
		Datetime: base.Add(time.Duration(i) * time.Hour),
		Open:     d(close),
		High:     d(high),
		Low:      d(low),
		Close:    d(close),
		Volume:   d(1),
	}
}

// flatWindow builds n bars inside a 95..105 channel.
func flatWindow(n int) []model.Candle {
	bars := make([]model.Candle, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, bar(i, 105, 95, 100))
	}
	return bars
}

func newBreakout(t *testing.T, cfg BreakoutConfig) *Breakout {
	t.Helper()
	log, _ := logrustest.NewNullLogger()
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	return NewBreakout(log.WithField("test", t.Name()), cfg)
}

func TestBreakoutInsufficientHistoryHolds(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10})

	// 20 bars is one short of the 20 prior + current the entry needs.
	window := flatWindow(19)
	window = append(window, bar(19, 120, 110, 115))

	sig := b.Evaluate(window, State{})
	require.True(t, sig.IsHold())

	// Same close with enough history fires.
	window = flatWindow(20)
	window = append(window, bar(20, 120, 110, 115))

	sig = b.Evaluate(window, State{})
	require.Equal(t, model.DirectionLong, sig.Direction)
}

func TestBreakoutLongEntryStrictInequality(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10})

	// Close exactly on the prior 20-bar high must not trigger.
	window := append(flatWindow(20), bar(20, 106, 100, 105))
	sig := b.Evaluate(window, State{})
	require.True(t, sig.IsHold())

	// One tick above does.
	window = append(flatWindow(20), bar(20, 106, 100, 105.01))
	sig = b.Evaluate(window, State{})
	require.Equal(t, model.DirectionLong, sig.Direction)
	require.Equal(t, 105.01, sig.ReferencePrice)
	// Initial stop is the 10-bar exit channel low.
	require.Equal(t, 95.0, sig.StopReference)
}

func TestBreakoutShortEntry(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10})

	window := append(flatWindow(20), bar(20, 100, 90, 94.9))
	sig := b.Evaluate(window, State{})
	require.Equal(t, model.DirectionShort, sig.Direction)
	require.Equal(t, 105.0, sig.StopReference)
}

func TestBreakoutLongOnlySuppressesShorts(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10, LongOnly: true})

	window := append(flatWindow(20), bar(20, 100, 90, 94.9))
	sig := b.Evaluate(window, State{})
	require.True(t, sig.IsHold())
	require.Empty(t, sig.Suppressed)
}

func TestBreakoutTurtleFilterSuppressesAfterWin(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10, UseTurtleFilter: true})

	window := append(flatWindow(20), bar(20, 120, 110, 115))

	sig := b.Evaluate(window, State{SkipWinLong: true})
	require.True(t, sig.IsHold())
	require.Equal(t, model.DirectionLong, sig.Suppressed)

	// A winning short does not block a long entry.
	sig = b.Evaluate(window, State{SkipWinShort: true})
	require.Equal(t, model.DirectionLong, sig.Direction)

	// Filter disabled: the win is ignored.
	b = newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10})
	sig = b.Evaluate(window, State{SkipWinLong: true})
	require.Equal(t, model.DirectionLong, sig.Direction)
}

func TestBreakoutLongExitOnTrailingChannel(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10})
	pos := &model.Position{
		Symbol:     "BTCUSDT",
		Side:       model.DirectionLong,
		EntryPrice: 105,
		Size:       1,
		Status:     model.PositionStatusOpen,
	}

	// Close above the 10-bar low: hold, but report the refreshed stop.
	window := append(flatWindow(20), bar(20, 106, 96, 100))
	sig := b.Evaluate(window, State{Position: pos})
	require.False(t, sig.Exit)
	require.Equal(t, 95.0, sig.StopReference)

	// Close strictly below the 10-bar low: stop-hit exit.
	window = append(flatWindow(20), bar(20, 100, 90, 94.5))
	sig = b.Evaluate(window, State{Position: pos})
	require.True(t, sig.Exit)
	require.Equal(t, model.ExitReasonStopHit, sig.ExitReason)

	// Exactly on the low is not an exit.
	window = append(flatWindow(20), bar(20, 100, 90, 95))
	sig = b.Evaluate(window, State{Position: pos})
	require.False(t, sig.Exit)
}

func TestBreakoutShortExitOnTrailingChannel(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10})
	pos := &model.Position{
		Symbol:     "BTCUSDT",
		Side:       model.DirectionShort,
		EntryPrice: 95,
		Size:       1,
		Status:     model.PositionStatusOpen,
	}

	window := append(flatWindow(20), bar(20, 110, 100, 105.5))
	sig := b.Evaluate(window, State{Position: pos})
	require.True(t, sig.Exit)
	require.Equal(t, model.ExitReasonStopHit, sig.ExitReason)

	window = append(flatWindow(20), bar(20, 104, 96, 100))
	sig = b.Evaluate(window, State{Position: pos})
	require.False(t, sig.Exit)
	require.Equal(t, 105.0, sig.StopReference)
}

// Scenario from the breakout playbook: N=20, M=10, a close through the
// 20-bar high opens a long on bar 21, a later close through the 10-bar low
// closes it as a stop-hit.
func TestBreakoutRoundTripScenario(t *testing.T) {
	b := newBreakout(t, BreakoutConfig{EntryLookback: 20, ExitLookback: 10})

	window := append(flatWindow(20), bar(20, 112, 104, 110))
	entry := b.Evaluate(window, State{})
	require.Equal(t, model.DirectionLong, entry.Direction)

	pos := &model.Position{
		Symbol:     "BTCUSDT",
		Side:       model.DirectionLong,
		EntryPrice: entry.ReferencePrice,
		Size:       2,
		StopLevel:  entry.StopReference,
		Status:     model.PositionStatusOpen,
	}

	window = append(window, bar(21, 110, 92, 94))
	exit := b.Evaluate(window, State{Position: pos})
	require.True(t, exit.Exit)
	require.Equal(t, model.ExitReasonStopHit, exit.ExitReason)
}
