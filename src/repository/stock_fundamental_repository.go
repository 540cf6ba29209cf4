package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"valueinvestor/src/database"
	"valueinvestor/src/model"
)

// StockFundamentalRepository reads and maintains the candidate universe.
type StockFundamentalRepository struct {
	db *gorm.DB
}

// NewStockFundamentalRepository reads through the read-only connection when one is configured.
func NewStockFundamentalRepository() *StockFundamentalRepository {
	return &StockFundamentalRepository{db: database.Reader()}
}

func (r *StockFundamentalRepository) WithDB(db *gorm.DB) *StockFundamentalRepository {
	return &StockFundamentalRepository{db: db}
}

// Universe returns the first limit rows by rank; ties are broken by symbol.
func (r *StockFundamentalRepository) Universe(ctx context.Context, limit int) ([]model.StockFundamental, error) {
	if limit <= 0 {
		return []model.StockFundamental{}, nil
	}

	var rows []model.StockFundamental
	err := r.db.WithContext(ctx).
		Order("rank ASC, symbol ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "StockFundamentalRepository",
			"op":    "Universe",
			"limit": limit,
		}).WithError(err).Error("Failed to load universe")
		return nil, err
	}
	return rows, nil
}

// Upsert inserts or refreshes rows keyed by symbol. LastPrice is left untouched.
func (r *StockFundamentalRepository) Upsert(ctx context.Context, rows []model.StockFundamental) error {
	if len(rows) == 0 {
		return nil
	}

	logger.WithFields(map[string]interface{}{
		"repo":  "StockFundamentalRepository",
		"op":    "Upsert",
		"count": len(rows),
	}).Info("Upserting stock fundamentals")

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"rank", "fundamentals", "updated_at"}),
		}).
		CreateInBatches(&rows, 200).Error
}

// UpdateLastPrice stores the most recent quote seen for symbol.
func (r *StockFundamentalRepository) UpdateLastPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&model.StockFundamental{}).
		Where("symbol = ?", symbol).
		Updates(map[string]interface{}{
			"last_price": decimal.NewNullDecimal(price),
			"updated_at": time.Now().UTC(),
		}).Error
}

// LastPrice returns the stored quote for symbol, invalid when none is known.
func (r *StockFundamentalRepository) LastPrice(ctx context.Context, symbol string) (decimal.NullDecimal, error) {
	var row model.StockFundamental
	err := r.db.WithContext(ctx).
		Select("last_price").
		Where("symbol = ?", symbol).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return row.LastPrice, nil
}
