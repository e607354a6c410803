package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradingbot/src/database"
	"tradingbot/src/model"
)

type CandleRepository struct {
	db *gorm.DB
}

func NewCandleRepository() *CandleRepository {
	return &CandleRepository{db: database.MainDB}
}

func NewCandleRepositoryWithDB(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// FetchRecent returns up to limit candles for the symbol closing at or
// before to, in ascending chronological order.
func (r *CandleRepository) FetchRecent(
	ctx context.Context,
	symbol string,
	to time.Time,
	limit int,
) ([]model.Candle, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows []model.Candle
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND datetime <= ?", symbol, to).
		Order("datetime DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// LatestDatetime returns the newest stored bar time for the symbol, or a
// zero time when none exist.
func (r *CandleRepository) LatestDatetime(ctx context.Context, symbol string) (time.Time, error) {
	var latest sql.NullTime
	err := r.db.WithContext(ctx).
		Model(&model.Candle{}).
		Select("MAX(datetime)").
		Where("symbol = ?", symbol).
		Take(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time, nil
}

// Upsert inserts candles, overwriting the OHLCV columns on a
// (symbol, datetime) conflict. Bars are immutable once closed, so a
// conflicting upsert rewrites a row with identical values.
func (r *CandleRepository) Upsert(ctx context.Context, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "datetime"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).Create(&candles).Error
}
