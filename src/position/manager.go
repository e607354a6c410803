package position

import (
	"context"
	"errors"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradingbot/src/connectors"
	"tradingbot/src/model"
)

const (
	submitAttempts    = 3
	submitBackoffBase = 2 * time.Second
)

type orderSubmitter interface {
	SubmitOrder(ctx context.Context, req connectors.OrderRequest) (string, error)
}

type tradeAppender interface {
	Append(ctx context.Context, trade *model.Trade) error
}

// PendingSignal is a signal that arrived while an order was in flight.
// Depth is one per symbol; a newer signal replaces an older queued one.
// The size is not carried: entries are re-sized when the signal is
// finally dispatched, against the equity of that moment.
type PendingSignal struct {
	Signal model.Signal
}

type intent struct {
	orderID    string
	side       string
	size       float64
	entering   bool
	exitReason string
	stopLevel  float64
	sig        model.Signal
	deadline   time.Time
}

// Manager owns the per-symbol position state machine
// (flat, entering, open, exiting). It is not safe for concurrent use;
// the processing loop is the only caller.
type Manager struct {
	log        *logger.Entry
	gateway    orderSubmitter
	ledger     tradeAppender
	ackTimeout time.Duration
	backoff    time.Duration

	positions map[string]*model.Position
	inflight  map[string]*intent
	pending   map[string]*PendingSignal

	// OnTradeClosed, when set, runs after a trade is durably appended.
	OnTradeClosed func(trade *model.Trade)
}

func NewManager(log *logger.Entry, gateway orderSubmitter, ledger tradeAppender, ackTimeout time.Duration) *Manager {
	if ackTimeout <= 0 {
		ackTimeout = 30 * time.Second
	}
	return &Manager{
		log:        log,
		gateway:    gateway,
		ledger:     ledger,
		ackTimeout: ackTimeout,
		backoff:    submitBackoffBase,
		positions:  make(map[string]*model.Position),
		inflight:   make(map[string]*intent),
		pending:    make(map[string]*PendingSignal),
	}
}

// Position returns the live position for a symbol, nil when flat.
func (m *Manager) Position(symbol string) *model.Position {
	pos := m.positions[symbol]
	if pos.IsFlat() {
		return nil
	}
	return pos
}

func (m *Manager) InFlight(symbol string) bool {
	return m.inflight[symbol] != nil
}

// IntentDeadline reports when the in-flight order's acknowledgment window
// expires. The processing loop calls HandleTimeout once it has passed.
func (m *Manager) IntentDeadline(symbol string) (time.Time, bool) {
	it := m.inflight[symbol]
	if it == nil {
		return time.Time{}, false
	}
	return it.deadline, true
}

// HandleSignal drives the state machine with a fresh strategy signal.
// Queues the signal when an order is already in flight.
func (m *Manager) HandleSignal(ctx context.Context, sig model.Signal, size float64) error {
	if m.InFlight(sig.Symbol) {
		m.pending[sig.Symbol] = &PendingSignal{Signal: sig}
		m.log.WithField("symbol", sig.Symbol).Debug("order in flight, signal queued")
		return nil
	}

	pos := m.positions[sig.Symbol]

	switch {
	case sig.Exit && !pos.IsFlat() && pos.Status == model.PositionStatusOpen:
		return m.submitExit(ctx, pos, sig.ReferencePrice, sig.ExitReason)

	case sig.IsEntry() && pos.IsFlat():
		if size <= 0 {
			m.log.WithField("symbol", sig.Symbol).Info("entry signal sized to zero, no trade")
			return nil
		}
		return m.submitEntry(ctx, sig, size)
	}

	return nil
}

// UpdateStop moves the trailing stop of an open position. The position
// stays open.
func (m *Manager) UpdateStop(symbol string, level float64) {
	pos := m.positions[symbol]
	if pos.IsFlat() || pos.Status != model.PositionStatusOpen || level <= 0 {
		return
	}
	if pos.StopLevel == level {
		return
	}
	m.log.WithFields(logger.Fields{
		"symbol":   symbol,
		"old_stop": pos.StopLevel,
		"new_stop": level,
	}).Info("trailing stop updated")
	pos.StopLevel = level
}

func (m *Manager) submitEntry(ctx context.Context, sig model.Signal, size float64) error {
	side := connectors.OrderSideBuy
	if sig.Direction == model.DirectionShort {
		side = connectors.OrderSideSell
	}

	m.positions[sig.Symbol] = &model.Position{
		Symbol:      sig.Symbol,
		Side:        sig.Direction,
		Size:        size,
		StrategyTag: sig.StrategyTag,
		Status:      model.PositionStatusEntering,
	}

	orderID, err := m.submitWithRetry(ctx, connectors.OrderRequest{
		Symbol: sig.Symbol,
		Side:   side,
		Type:   connectors.OrderTypeMarket,
		Size:   size,
		Price:  sig.ReferencePrice,
	})
	if err != nil {
		m.log.WithError(err).WithField("symbol", sig.Symbol).Warn("entry abandoned")
		delete(m.positions, sig.Symbol)
		return nil
	}

	m.inflight[sig.Symbol] = &intent{
		orderID:   orderID,
		side:      side,
		size:      size,
		entering:  true,
		stopLevel: sig.StopReference,
		sig:       sig,
		deadline:  time.Now().Add(m.ackTimeout),
	}
	return nil
}

func (m *Manager) submitExit(ctx context.Context, pos *model.Position, refPrice float64, reason string) error {
	side := connectors.OrderSideSell
	if pos.Side == model.DirectionShort {
		side = connectors.OrderSideBuy
	}

	pos.Status = model.PositionStatusExiting

	orderID, err := m.submitWithRetry(ctx, connectors.OrderRequest{
		Symbol: pos.Symbol,
		Side:   side,
		Type:   connectors.OrderTypeMarket,
		Size:   pos.Size,
		Price:  refPrice,
	})
	if err != nil {
		m.log.WithError(err).WithField("symbol", pos.Symbol).Warn("exit abandoned, position stays open")
		pos.Status = model.PositionStatusOpen
		return nil
	}

	m.inflight[pos.Symbol] = &intent{
		orderID:    orderID,
		side:       side,
		size:       pos.Size,
		exitReason: reason,
		deadline:   time.Now().Add(m.ackTimeout),
	}
	return nil
}

// CloseOpenPosition submits a closing order for an open position outside
// the normal signal flow, e.g. at shutdown.
func (m *Manager) CloseOpenPosition(ctx context.Context, symbol string, refPrice float64, reason string) error {
	pos := m.positions[symbol]
	if pos.IsFlat() || pos.Status != model.PositionStatusOpen {
		return nil
	}
	return m.submitExit(ctx, pos, refPrice, reason)
}

func (m *Manager) submitWithRetry(ctx context.Context, req connectors.OrderRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		orderID, err := m.gateway.SubmitOrder(ctx, req)
		if err == nil {
			return orderID, nil
		}
		lastErr = err

		if errors.Is(err, connectors.ErrRejectedOrder) {
			return "", err
		}

		m.log.WithError(err).WithFields(logger.Fields{
			"symbol":  req.Symbol,
			"attempt": attempt,
		}).Warn("order submission failed")

		if attempt == submitAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.backoff * time.Duration(attempt)):
		}
	}
	return "", fmt.Errorf("order submission gave up after %d attempts: %w", submitAttempts, lastErr)
}

// HandleFill resolves the in-flight intent with an execution report. The
// returned PendingSignal, if any, must be re-evaluated by the caller now
// that the transition has settled. A non-nil error is a ledger write
// failure and is fatal.
func (m *Manager) HandleFill(ctx context.Context, fill connectors.FillEvent) (*PendingSignal, error) {
	it := m.inflight[fill.Symbol]
	if it == nil || it.orderID != fill.OrderID {
		m.log.WithFields(logger.Fields{
			"symbol":   fill.Symbol,
			"order_id": fill.OrderID,
		}).Warn("fill for unknown order, ignoring")
		return nil, nil
	}

	if it.entering {
		m.applyEntryFill(it, fill)
	} else {
		if err := m.applyExitFill(ctx, it, fill); err != nil {
			return nil, err
		}
	}

	delete(m.inflight, fill.Symbol)
	return m.popPending(fill.Symbol), nil
}

func (m *Manager) applyEntryFill(it *intent, fill connectors.FillEvent) {
	pos := m.positions[fill.Symbol]
	pos.EntryPrice = fill.Price
	pos.Size = fill.Size
	pos.OpenedAt = fill.Timestamp
	pos.StopLevel = it.stopLevel
	pos.Status = model.PositionStatusOpen

	m.log.WithFields(logger.Fields{
		"symbol": pos.Symbol,
		"side":   pos.Side,
		"entry":  pos.EntryPrice,
		"size":   pos.Size,
		"stop":   pos.StopLevel,
	}).Info("position opened")
}

func (m *Manager) applyExitFill(ctx context.Context, it *intent, fill connectors.FillEvent) error {
	pos := m.positions[fill.Symbol]
	pnl := (fill.Price - pos.EntryPrice) * pos.Size * pos.Side.Sign()

	trade := &model.Trade{
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   fill.Price,
		Size:        pos.Size,
		Pnl:         pnl,
		OpenedAt:    pos.OpenedAt,
		ClosedAt:    fill.Timestamp,
		StrategyTag: pos.StrategyTag,
		ExitReason:  it.exitReason,
	}

	// The append must land before the position goes flat. Losing a trade
	// record is worse than stopping the process.
	if err := m.ledger.Append(ctx, trade); err != nil {
		return err
	}

	delete(m.positions, fill.Symbol)

	m.log.WithFields(logger.Fields{
		"symbol":      trade.Symbol,
		"side":        trade.Side,
		"pnl":         trade.Pnl,
		"exit_reason": trade.ExitReason,
	}).Info("position closed")

	if m.OnTradeClosed != nil {
		m.OnTradeClosed(trade)
	}
	return nil
}

// HandleTimeout discards an in-flight intent whose acknowledgment window
// expired and reverts to the prior stable state. Returns the queued
// signal, if any, for re-evaluation.
func (m *Manager) HandleTimeout(symbol string) *PendingSignal {
	it := m.inflight[symbol]
	if it == nil {
		return nil
	}
	delete(m.inflight, symbol)

	pos := m.positions[symbol]
	if it.entering {
		delete(m.positions, symbol)
	} else if !pos.IsFlat() {
		pos.Status = model.PositionStatusOpen
	}

	m.log.WithFields(logger.Fields{
		"symbol":   symbol,
		"order_id": it.orderID,
	}).Warn("order acknowledgment timed out, intent discarded")

	return m.popPending(symbol)
}

func (m *Manager) popPending(symbol string) *PendingSignal {
	p := m.pending[symbol]
	if p != nil {
		delete(m.pending, symbol)
	}
	return p
}
