package connectors

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradingbot/src/model"
)

var (
	// ErrRejectedOrder means the exchange refused the order. The position
	// manager reverts to its prior stable state and abandons the signal.
	ErrRejectedOrder = errors.New("order rejected by exchange")

	// ErrGatewayUnavailable means the exchange could not be reached at
	// all. Submissions are retried with backoff up to a bounded count.
	ErrGatewayUnavailable = errors.New("execution gateway unavailable")
)

const (
	OrderSideBuy  = "Buy"
	OrderSideSell = "Sell"

	OrderTypeMarket = "Market"
)

type OrderRequest struct {
	Symbol string
	Side   string
	Type   string
	Size   float64

	// Price is the reference price at submission time. Market orders may
	// fill away from it; the paper connector fills exactly at it.
	Price float64
}

// FillEvent reports one execution for a submitted order.
type FillEvent struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}

// ExchangeConnector is the execution gateway contract. Implementations
// must deliver fills on the FillEvents channel rather than mutating any
// trading state themselves; the processing loop marshals the events back
// into the single pipeline.
type ExchangeConnector interface {
	TestConnection() error
	AccountEquity(ctx context.Context) (float64, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)
	FillEvents() <-chan FillEvent

	// FillHistory replays past executions, newest last. Used to rebuild
	// the ledger after a crash between a fill and its durable append.
	FillHistory(ctx context.Context, symbol string, since time.Time) ([]FillEvent, error)
}

// MarketDataSource supplies closed OHLCV bars, oldest first.
type MarketDataSource interface {
	LatestCandles(ctx context.Context, symbol string, count int) ([]model.Candle, error)
}

// StreamingMarketDataSource pushes bars as they close. The sequence is
// infinite and not restartable; the channel closes when ctx is done or the
// upstream connection is lost for good.
type StreamingMarketDataSource interface {
	Subscribe(ctx context.Context, symbol string) (<-chan model.Candle, error)
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
