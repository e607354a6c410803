package executors

import (
	"context"

	logger "github.com/sirupsen/logrus"

	"tradingbot/src/connectors"
	"tradingbot/src/model"
	"tradingbot/src/performance"
)

// replayLedger keeps simulated trades in memory. A backtest never writes
// to the live trade ledger.
type replayLedger struct {
	trades []model.Trade
}

func (l *replayLedger) Append(_ context.Context, trade *model.Trade) error {
	l.trades = append(l.trades, *trade)
	return nil
}

func (l *replayLedger) Last(_ context.Context, symbol string) (*model.Trade, error) {
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].Symbol == symbol {
			t := l.trades[i]
			return &t, nil
		}
	}
	return nil, nil
}

type BacktestResult struct {
	Snapshot    performance.Snapshot
	Trades      []model.Trade
	FinalEquity float64
}

// RunBacktest replays stored candles through the live pipeline: the same
// strategy, sizer and position manager, with a paper gateway filling each
// order at the signal's reference price. A position still open when the
// data runs out is closed at the last close.
func RunBacktest(ctx context.Context, log *logger.Entry, cfg Config, candles []model.Candle, startingEquity float64) (*BacktestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.WithField("component", "backtest")
	}

	paper := connectors.NewPaperConnector(startingEquity)
	ledger := &replayLedger{}
	eng := NewEngine(EngineParams{
		Log:     log,
		Config:  cfg,
		Gateway: paper,
		Ledger:  ledger,
		Paper:   paper,
	})

	for i := range candles {
		if err := eng.onCandle(ctx, candles[i]); err != nil {
			return nil, err
		}
		if err := eng.drainFills(ctx); err != nil {
			return nil, err
		}
	}

	if pos := eng.manager.Position(cfg.TradingPair); pos != nil && pos.Status == model.PositionStatusOpen && eng.lastPrice > 0 {
		if err := eng.manager.CloseOpenPosition(ctx, cfg.TradingPair, eng.lastPrice, model.ExitReasonShutdown); err != nil {
			return nil, err
		}
		if err := eng.drainFills(ctx); err != nil {
			return nil, err
		}
	}

	equity, _ := paper.AccountEquity(ctx)
	return &BacktestResult{
		Snapshot:    performance.Compute(ledger.trades),
		Trades:      ledger.trades,
		FinalEquity: equity,
	}, nil
}

// drainFills applies every fill already produced by the gateway. Paper
// fills are synchronous, so an empty channel means the bar's transitions
// have settled.
func (e *Engine) drainFills(ctx context.Context) error {
	for {
		select {
		case fill := <-e.gateway.FillEvents():
			if err := e.onFill(ctx, fill); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
