package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingbot/src/model"
)

func TestRunBacktest_BreakoutRoundTrip(t *testing.T) {
	candles := make([]model.Candle, 0, 9)
	for i := 0; i < 7; i++ {
		candles = append(candles, bar(i, 105, 95, 100))
	}
	candles = append(candles, bar(7, 106, 100, 105.5)) // entry
	candles = append(candles, bar(8, 101, 94, 94.5))   // stop hit

	result, err := RunBacktest(context.Background(), nil, testConfig(), candles, 10000)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, model.DirectionLong, trade.Side)
	assert.Equal(t, model.ExitReasonStopHit, trade.ExitReason)
	// equity 10000, risk 0.01, entry 105.5, stop 95
	size := 100.0 / 10.5
	assert.InDelta(t, size, trade.Size, 1e-9)
	assert.InDelta(t, (94.5-105.5)*size, trade.Pnl, 1e-9)

	assert.Equal(t, 1, result.Snapshot.TotalTrades)
	assert.InDelta(t, trade.Pnl, result.Snapshot.NetPnl, 1e-9)
	assert.InDelta(t, 10000+trade.Pnl, result.FinalEquity, 1e-9)
}

func TestRunBacktest_ClosesOpenPositionAtEndOfData(t *testing.T) {
	candles := make([]model.Candle, 0, 9)
	for i := 0; i < 7; i++ {
		candles = append(candles, bar(i, 105, 95, 100))
	}
	candles = append(candles, bar(7, 106, 100, 105.5))
	candles = append(candles, bar(8, 112, 107, 111)) // still rising at the end

	result, err := RunBacktest(context.Background(), nil, testConfig(), candles, 10000)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	trade := result.Trades[0]
	assert.Equal(t, model.ExitReasonShutdown, trade.ExitReason)
	assert.Equal(t, 111.0, trade.ExitPrice)
	assert.Greater(t, trade.Pnl, 0.0)
}

func TestRunBacktest_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RiskPerTrade = 2

	_, err := RunBacktest(context.Background(), nil, cfg, nil, 10000)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
