package performance

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tradingbot/src/model"
)

func trade(symbol string, side model.Direction, pnl float64, closedAt time.Time) model.Trade {
	return model.Trade{
		Symbol:     symbol,
		Side:       side,
		Pnl:        pnl,
		Size:       1,
		ClosedAt:   closedAt,
		ExitReason: model.ExitReasonSignal,
	}
}

func sampleTrades() []model.Trade {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	return []model.Trade{
		trade("BTCUSDT", model.DirectionLong, 10, base),
		trade("BTCUSDT", model.DirectionLong, 5, base.Add(time.Hour)),
		trade("ETHUSDT", model.DirectionShort, -3, base.Add(2*time.Hour)),
	}
}

func TestComputeProfitFactor(t *testing.T) {
	s := Compute(sampleTrades())

	// [+10, +5, -3] -> 15/3 = 5.0
	require.InDelta(t, 5.0, s.ProfitFactor, 1e-9)
	require.Equal(t, 3, s.TotalTrades)
	require.InDelta(t, 12, s.NetPnl, 1e-9)
	require.Equal(t, 2, s.Wins)
	require.Equal(t, 1, s.Losses)
	require.InDelta(t, 100.0*2/3, s.WinRate, 1e-9)
	require.InDelta(t, 10, s.MaxWin, 1e-9)
	require.InDelta(t, -3, s.MaxLoss, 1e-9)
}

func TestComputeProfitFactorNoLossesIsInfinite(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s := Compute([]model.Trade{
		trade("BTCUSDT", model.DirectionLong, 10, base),
	})
	require.True(t, math.IsInf(s.ProfitFactor, 1))
}

func TestComputeEmptyLedger(t *testing.T) {
	s := Compute(nil)
	require.Equal(t, 0, s.TotalTrades)
	require.Zero(t, s.NetPnl)
	require.Empty(t, s.BySide)
	require.Empty(t, s.BySymbol)
}

func TestComputeBreakdowns(t *testing.T) {
	s := Compute(sampleTrades())

	long := s.BySide[model.DirectionLong]
	require.Equal(t, 2, long.Count)
	require.InDelta(t, 15, long.NetPnl, 1e-9)
	require.InDelta(t, 100, long.WinRate, 1e-9)

	short := s.BySide[model.DirectionShort]
	require.Equal(t, 1, short.Count)
	require.InDelta(t, -3, short.NetPnl, 1e-9)
	require.Zero(t, short.WinRate)

	require.Equal(t, 2, s.BySymbol["BTCUSDT"].Count)
	require.Equal(t, 1, s.BySymbol["ETHUSDT"].Count)
}

func TestComputeIsIdempotent(t *testing.T) {
	trades := sampleTrades()
	first := Compute(trades)
	second := Compute(trades)
	require.Equal(t, first, second)
}

type stubLister struct {
	trades []model.Trade
	err    error
	calls  int
}

func (s *stubLister) ListAll(ctx context.Context) ([]model.Trade, error) {
	s.calls++
	return s.trades, s.err
}

func TestTrackerCachesUntilInvalidated(t *testing.T) {
	lister := &stubLister{trades: sampleTrades()}
	tracker := NewTracker(lister)

	first, err := tracker.Snapshot(context.Background())
	require.NoError(t, err)
	second, err := tracker.Snapshot(context.Background())
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, lister.calls, "second snapshot should come from cache")

	// Ledger grows: cache must be dropped and recomputed.
	lister.trades = append(lister.trades,
		trade("BTCUSDT", model.DirectionLong, 7, time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)))
	tracker.Invalidate()

	third, err := tracker.Snapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, lister.calls)
	require.Equal(t, 4, third.TotalTrades)
}

func TestTrackerPropagatesLedgerError(t *testing.T) {
	lister := &stubLister{err: errors.New("ledger unavailable")}
	tracker := NewTracker(lister)

	_, err := tracker.Snapshot(context.Background())
	require.Error(t, err)
}

func TestFormatReport(t *testing.T) {
	out := FormatReport(Compute(sampleTrades()))
	require.Contains(t, out, "Total Trades:  3")
	require.Contains(t, out, "Profit Factor: 5.00")

	out = FormatReport(Compute(nil))
	require.True(t, strings.HasPrefix(out, "No trades recorded"))
}

func TestFormatReportOrdersBreakdowns(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		trade("ETHUSDT", model.DirectionShort, -3, base),
		trade("BTCUSDT", model.DirectionLong, 10, base.Add(time.Hour)),
		trade("ADAUSDT", model.DirectionLong, 2, base.Add(2*time.Hour)),
	}

	out := FormatReport(Compute(trades))

	// Breakdown sections are sorted, not in map iteration order.
	require.Less(t, strings.Index(out, "long"), strings.Index(out, "short"))
	require.Less(t, strings.Index(out, "ADAUSDT"), strings.Index(out, "BTCUSDT"))
	require.Less(t, strings.Index(out, "BTCUSDT"), strings.Index(out, "ETHUSDT"))

	for i := 0; i < 10; i++ {
		require.Equal(t, out, FormatReport(Compute(trades)))
	}
}
