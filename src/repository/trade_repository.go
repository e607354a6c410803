package repository

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradingbot/src/database"
	"tradingbot/src/model"
)

// ErrLedgerWrite marks a failed trade append. The ledger is the single
// source of truth for realized performance, so callers must treat this as
// fatal rather than continue with an inconsistent history.
var ErrLedgerWrite = errors.New("trade ledger write failed")

// TradeRepository is the append-only trade ledger. Trades are written once
// when a position closes and never updated or deleted.
type TradeRepository struct {
	db *gorm.DB
}

func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

func NewTradeRepositoryWithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Append durably records a closed trade. The row is committed before
// Append returns; the caller may only consider the position flat after a
// nil result.
func (r *TradeRepository) Append(ctx context.Context, trade *model.Trade) error {
	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	logger.WithFields(logger.Fields{
		"symbol":      trade.Symbol,
		"side":        trade.Side,
		"pnl":         trade.Pnl,
		"exit_reason": trade.ExitReason,
	}).Info("trade appended to ledger")

	return nil
}

// ListAll returns every trade in closing order.
func (r *TradeRepository) ListAll(ctx context.Context) ([]model.Trade, error) {
	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Order("closed_at ASC, id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// ListBySymbol returns the trades for one symbol in closing order.
func (r *TradeRepository) ListBySymbol(ctx context.Context, symbol string) ([]model.Trade, error) {
	var trades []model.Trade
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("closed_at ASC, id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// LastBySide returns the most recently closed trade for the symbol and
// side, or nil when none exists. The turtle filter reads its state here.
func (r *TradeRepository) LastBySide(ctx context.Context, symbol string, side model.Direction) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND side = ?", symbol, side).
		Order("closed_at DESC, id DESC").
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

// Last returns the most recently closed trade for the symbol regardless of
// side, or nil when the ledger is empty for it.
func (r *TradeRepository) Last(ctx context.Context, symbol string) (*model.Trade, error) {
	var trade model.Trade
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("closed_at DESC, id DESC").
		First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &trade, nil
}
