package connectors_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingbot/src/connectors"
)

func TestPaperConnector_FillsImmediatelyAtReferencePrice(t *testing.T) {
	p := connectors.NewPaperConnector(10000)

	orderID, err := p.SubmitOrder(context.Background(), connectors.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   connectors.OrderSideBuy,
		Type:   connectors.OrderTypeMarket,
		Size:   0.5,
		Price:  40000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, orderID)

	select {
	case fill := <-p.FillEvents():
		assert.Equal(t, orderID, fill.OrderID)
		assert.Equal(t, "BTCUSDT", fill.Symbol)
		assert.Equal(t, connectors.OrderSideBuy, fill.Side)
		assert.Equal(t, 40000.0, fill.Price)
		assert.Equal(t, 0.5, fill.Size)
	case <-time.After(time.Second):
		t.Fatal("expected an immediate fill")
	}
}

func TestPaperConnector_RejectsBadOrders(t *testing.T) {
	p := connectors.NewPaperConnector(10000)

	_, err := p.SubmitOrder(context.Background(), connectors.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   connectors.OrderSideBuy,
		Type:   connectors.OrderTypeMarket,
		Size:   0,
		Price:  40000,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, connectors.ErrRejectedOrder))

	_, err = p.SubmitOrder(context.Background(), connectors.OrderRequest{
		Symbol: "BTCUSDT",
		Side:   connectors.OrderSideBuy,
		Type:   connectors.OrderTypeMarket,
		Size:   1,
		Price:  0,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, connectors.ErrRejectedOrder))
}

func TestPaperConnector_FillHistoryFiltersBySymbolAndTime(t *testing.T) {
	p := connectors.NewPaperConnector(10000)
	ctx := context.Background()

	submit := func(symbol string) {
		t.Helper()
		_, err := p.SubmitOrder(ctx, connectors.OrderRequest{
			Symbol: symbol,
			Side:   connectors.OrderSideSell,
			Type:   connectors.OrderTypeMarket,
			Size:   1,
			Price:  100,
		})
		require.NoError(t, err)
		<-p.FillEvents()
	}

	submit("BTCUSDT")
	submit("ETHUSDT")
	submit("BTCUSDT")

	history, err := p.FillHistory(ctx, "BTCUSDT", time.Time{})
	require.NoError(t, err)
	assert.Len(t, history, 2)

	history, err = p.FillHistory(ctx, "BTCUSDT", time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPaperConnector_EquityTracksRealizedPnl(t *testing.T) {
	p := connectors.NewPaperConnector(10000)

	equity, err := p.AccountEquity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10000.0, equity)

	p.AdjustEquity(250)
	p.AdjustEquity(-100)

	equity, err = p.AccountEquity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10150.0, equity)
}
