package executors

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingbot/src/connectors"
	"tradingbot/src/model"
	"tradingbot/src/performance"
	"tradingbot/src/position"
	"tradingbot/src/risk"
	"tradingbot/src/stops"
	"tradingbot/src/strategy"
)

// Event is one unit of work for the processing loop. Exactly one field is
// set. Both run modes produce events onto a single ordered queue so that
// candle evaluation and fill handling never interleave.
type Event struct {
	Candle *model.Candle
	Fill   *connectors.FillEvent
}

// TradeLedger is the slice of the trade repository the engine needs.
type TradeLedger interface {
	Append(ctx context.Context, trade *model.Trade) error
	Last(ctx context.Context, symbol string) (*model.Trade, error)
}

// CandleStore persists bars as they arrive. Optional.
type CandleStore interface {
	Upsert(ctx context.Context, candles []model.Candle) error
}

// EquityAdjuster lets simulated accounts track realized pnl. Optional.
type EquityAdjuster interface {
	AdjustEquity(delta float64)
}

type EngineParams struct {
	Log     *logger.Entry
	Config  Config
	Gateway connectors.ExchangeConnector
	Market  connectors.MarketDataSource
	Ledger  TradeLedger
	Candles CandleStore
	Tracker *performance.Tracker
	Paper   EquityAdjuster
}

// Engine consumes the event queue and drives the
// strategy → sizing → position pipeline. It is single-threaded: all state
// mutation happens on the goroutine calling Run.
type Engine struct {
	log     *logger.Entry
	cfg     Config
	strat   strategy.Strategy
	sizer   *risk.Sizer
	manager *position.Manager
	gateway connectors.ExchangeConnector
	market  connectors.MarketDataSource
	ledger  TradeLedger
	candles CandleStore
	tracker *performance.Tracker
	paper   EquityAdjuster

	window    []model.Candle
	skipLong  bool
	skipShort bool
	lastPrice float64
}

func NewEngine(p EngineParams) *Engine {
	log := p.Log
	if log == nil {
		log = logger.WithField("component", "engine")
	}

	e := &Engine{
		log:     log,
		cfg:     p.Config,
		strat:   p.Config.BuildStrategy(log),
		sizer:   p.Config.BuildSizer(),
		gateway: p.Gateway,
		market:  p.Market,
		ledger:  p.Ledger,
		candles: p.Candles,
		tracker: p.Tracker,
		paper:   p.Paper,
	}
	e.manager = position.NewManager(log, p.Gateway, p.Ledger, p.Config.OrderAckTimeout)
	e.manager.OnTradeClosed = e.onTradeClosed
	return e
}

func (e *Engine) symbol() string { return e.cfg.TradingPair }

func (e *Engine) windowCap() int {
	limit := e.strat.MinBars()
	if e.cfg.TrailLookback > limit {
		limit = e.cfg.TrailLookback
	}
	return limit + 50
}

// Warmup backfills the bar window and arms the turtle filter from the
// last recorded trade.
func (e *Engine) Warmup(ctx context.Context) error {
	candles, err := e.market.LatestCandles(ctx, e.symbol(), e.windowCap())
	if err != nil {
		return err
	}
	for i := range candles {
		e.pushCandle(ctx, candles[i])
	}
	e.log.WithFields(logger.Fields{
		"symbol": e.symbol(),
		"bars":   len(e.window),
	}).Info("bar window warmed up")

	last, err := e.ledger.Last(ctx, e.symbol())
	if err != nil {
		return err
	}
	if last != nil && last.IsWin() {
		e.armSkip(last.Side)
	}
	return nil
}

// Recover replays the exchange fill history recorded after the last
// ledger entry and reconstructs any round trip that was filled but never
// appended, e.g. because the process died between the two.
func (e *Engine) Recover(ctx context.Context) error {
	last, err := e.ledger.Last(ctx, e.symbol())
	if err != nil {
		return err
	}
	var since time.Time
	if last != nil {
		since = last.ClosedAt
	}

	fills, err := e.gateway.FillHistory(ctx, e.symbol(), since)
	if err != nil {
		if errors.Is(err, connectors.ErrGatewayUnavailable) {
			e.log.WithError(err).Warn("fill history unavailable, skipping recovery")
			return nil
		}
		return err
	}

	var open *connectors.FillEvent
	for i := range fills {
		f := fills[i]
		// Both gateways treat since inclusively, so the recorded trade's
		// own closing fill comes back; replaying it would seed the
		// pairing with the wrong side.
		if !since.IsZero() && !f.Timestamp.After(since) {
			continue
		}
		if open == nil {
			open = &f
			continue
		}
		if f.Side == open.Side {
			continue
		}

		side := model.DirectionLong
		if open.Side == connectors.OrderSideSell {
			side = model.DirectionShort
		}
		trade := &model.Trade{
			Symbol:      e.symbol(),
			Side:        side,
			EntryPrice:  open.Price,
			ExitPrice:   f.Price,
			Size:        open.Size,
			Pnl:         (f.Price - open.Price) * open.Size * side.Sign(),
			OpenedAt:    open.Timestamp,
			ClosedAt:    f.Timestamp,
			StrategyTag: e.strat.Name(),
			ExitReason:  model.ExitReasonRecovered,
		}
		if err := e.ledger.Append(ctx, trade); err != nil {
			return err
		}
		e.onTradeClosed(trade)
		e.log.WithField("pnl", trade.Pnl).Warn("recovered an unrecorded round trip from fill history")
		open = nil
	}

	if open != nil {
		e.log.WithFields(logger.Fields{
			"order_id": open.OrderID,
			"side":     open.Side,
		}).Warn("fill history ends with an unmatched entry; close it manually before restarting live")
	}
	return nil
}

// Run consumes events until the queue closes or ctx is cancelled, then
// shuts down gracefully.
func (e *Engine) Run(ctx context.Context, events <-chan Event) error {
	for {
		var ackExpired <-chan time.Time
		if deadline, ok := e.manager.IntentDeadline(e.symbol()); ok {
			ackExpired = time.After(time.Until(deadline))
		}

		select {
		case <-ctx.Done():
			return e.shutdown(events)

		case ev, ok := <-events:
			if !ok {
				return e.shutdown(nil)
			}
			if err := e.handleEvent(ctx, ev); err != nil {
				return err
			}

		case <-ackExpired:
			e.onAckTimeout(ctx)
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev Event) error {
	switch {
	case ev.Candle != nil:
		return e.onCandle(ctx, *ev.Candle)
	case ev.Fill != nil:
		return e.onFill(ctx, *ev.Fill)
	}
	return nil
}

func (e *Engine) onCandle(ctx context.Context, candle model.Candle) error {
	e.pushCandle(ctx, candle)
	e.lastPrice = candle.Close.InexactFloat64()

	if len(e.window) < e.strat.MinBars() {
		e.log.WithFields(logger.Fields{
			"have": len(e.window),
			"need": e.strat.MinBars(),
		}).Info("not enough history yet, holding")
		return nil
	}

	state := strategy.State{
		Position:     e.manager.Position(e.symbol()),
		SkipWinLong:  e.skipLong,
		SkipWinShort: e.skipShort,
	}
	sig := e.strat.Evaluate(e.window, state)

	// The filter is one-shot: a suppressed entry disarms it.
	switch sig.Suppressed {
	case model.DirectionLong:
		e.skipLong = false
	case model.DirectionShort:
		e.skipShort = false
	}

	return e.dispatchSignal(ctx, sig)
}

func (e *Engine) pushCandle(ctx context.Context, candle model.Candle) {
	n := len(e.window)
	if n > 0 && !candle.Datetime.After(e.window[n-1].Datetime) {
		if candle.Datetime.Equal(e.window[n-1].Datetime) {
			e.window[n-1] = candle
		}
		// Older than the window tail: out-of-order bar, drop it.
		return
	}

	e.window = append(e.window, candle)
	if limit := e.windowCap(); len(e.window) > limit {
		e.window = e.window[len(e.window)-limit:]
	}

	if e.candles != nil {
		if err := e.candles.Upsert(ctx, []model.Candle{candle}); err != nil {
			e.log.WithError(err).Warn("failed to persist candle")
		}
	}
}

func (e *Engine) dispatchSignal(ctx context.Context, sig model.Signal) error {
	switch {
	case sig.Exit:
		return e.manager.HandleSignal(ctx, sig, 0)

	case sig.IsEntry():
		size, err := e.sizeFor(ctx, sig)
		if err != nil {
			if errors.Is(err, risk.ErrInvalidRiskInput) {
				e.log.WithError(err).Info("entry not sizeable, no trade this cycle")
				return nil
			}
			e.log.WithError(err).Warn("equity lookup failed, abandoning entry this cycle")
			return nil
		}
		return e.manager.HandleSignal(ctx, sig, size)

	default:
		if pos := e.manager.Position(e.symbol()); pos != nil && pos.Status == model.PositionStatusOpen {
			e.refreshStop(sig, pos)
		}
		return nil
	}
}

func (e *Engine) sizeFor(ctx context.Context, sig model.Signal) (float64, error) {
	if e.cfg.RiskPerTrade == 0 {
		return e.cfg.TradeAmount, nil
	}

	equity, err := e.gateway.AccountEquity(ctx)
	if err != nil {
		return 0, err
	}

	size, err := e.sizer.Size(
		decimal.NewFromFloat(equity),
		decimal.NewFromFloat(sig.ReferencePrice),
		decimal.NewFromFloat(sig.StopReference),
	)
	if err != nil {
		return 0, err
	}
	return size.InexactFloat64(), nil
}

// refreshStop ratchets the recorded stop toward price. Candidates come
// from the candle trail and from the strategy's own exit reference; the
// stop never loosens.
func (e *Engine) refreshStop(sig model.Signal, pos *model.Position) {
	stop := decimal.NewFromFloat(pos.StopLevel)
	if next, moved := stops.NextTrailingStop(pos.Side, stop, e.window, e.cfg.TrailLookback); moved {
		stop = next
	}
	if sig.StopReference > 0 {
		ref := decimal.NewFromFloat(sig.StopReference)
		switch pos.Side {
		case model.DirectionLong:
			if ref.GreaterThan(stop) {
				stop = ref
			}
		case model.DirectionShort:
			if ref.LessThan(stop) {
				stop = ref
			}
		}
	}
	e.manager.UpdateStop(pos.Symbol, stop.InexactFloat64())
}

func (e *Engine) onFill(ctx context.Context, fill connectors.FillEvent) error {
	queued, err := e.manager.HandleFill(ctx, fill)
	if err != nil {
		return err
	}
	if queued != nil {
		return e.dispatchSignal(ctx, queued.Signal)
	}
	return nil
}

func (e *Engine) onAckTimeout(ctx context.Context) {
	queued := e.manager.HandleTimeout(e.symbol())
	if queued != nil {
		if err := e.dispatchSignal(ctx, queued.Signal); err != nil {
			e.log.WithError(err).Warn("failed to re-dispatch queued signal after timeout")
		}
	}
}

func (e *Engine) onTradeClosed(trade *model.Trade) {
	e.skipLong = false
	e.skipShort = false
	if trade.IsWin() {
		e.armSkip(trade.Side)
	}

	if e.tracker != nil {
		e.tracker.Invalidate()
	}
	if e.paper != nil {
		e.paper.AdjustEquity(trade.Pnl)
	}
}

func (e *Engine) armSkip(side model.Direction) {
	if !e.cfg.UseTurtleFilter {
		return
	}
	switch side {
	case model.DirectionLong:
		e.skipLong = true
	case model.DirectionShort:
		e.skipShort = true
	}
	e.log.WithField("side", side).Info("winning trade closed, next same-side entry will be skipped")
}

// shutdown closes any open position and waits for the in-flight order to
// reach a terminal state before returning. It keeps draining the event
// queue: the fill forwarder may already have moved a gateway fill onto it.
func (e *Engine) shutdown(events <-chan Event) error {
	e.log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 2*e.cfg.OrderAckTimeout+10*time.Second)
	defer cancel()

	if err := e.awaitInFlight(ctx, events); err != nil {
		return err
	}

	if pos := e.manager.Position(e.symbol()); pos != nil && pos.Status == model.PositionStatusOpen && e.lastPrice > 0 {
		if err := e.manager.CloseOpenPosition(ctx, e.symbol(), e.lastPrice, model.ExitReasonShutdown); err != nil {
			e.log.WithError(err).Error("failed to close position on shutdown")
		}
		if err := e.awaitInFlight(ctx, events); err != nil {
			return err
		}
	}

	e.log.Info("shutdown complete")
	return nil
}

// awaitInFlight blocks until the in-flight order, if any, reaches a
// terminal state: filled, or timed out on acknowledgment. Fills are read
// from both the gateway and the event queue; declaring a timeout while
// the fill sits on the abandoned queue would desync the state machine
// from the exchange. Candles still on the queue are discarded.
func (e *Engine) awaitInFlight(ctx context.Context, events <-chan Event) error {
	for e.manager.InFlight(e.symbol()) {
		deadline, _ := e.manager.IntentDeadline(e.symbol())
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Fill != nil {
				if _, err := e.manager.HandleFill(ctx, *ev.Fill); err != nil {
					return err
				}
			}
		case fill := <-e.gateway.FillEvents():
			if _, err := e.manager.HandleFill(ctx, fill); err != nil {
				return err
			}
		case <-time.After(time.Until(deadline)):
			e.manager.HandleTimeout(e.symbol())
		case <-ctx.Done():
			e.log.Warn("gave up waiting for in-flight order during shutdown")
			return nil
		}
	}
	return nil
}
