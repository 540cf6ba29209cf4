package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"valueinvestor/src/database"
	"valueinvestor/src/model"
)

type CashRepository struct {
	db *gorm.DB
}

func NewCashRepository() *CashRepository {
	return &CashRepository{db: database.MainDB}
}

func (r *CashRepository) WithDB(db *gorm.DB) *CashRepository {
	return &CashRepository{db: db}
}

// Get returns the cash of one book; a book that was never seeded holds zero.
func (r *CashRepository) Get(ctx context.Context, mode model.TradingMode) (decimal.Decimal, error) {
	var row model.CashBalance
	err := r.db.WithContext(ctx).First(&row, "mode = ?", mode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return row.Balance, nil
}

func (r *CashRepository) Set(ctx context.Context, mode model.TradingMode, balance decimal.Decimal) error {
	row := model.CashBalance{Mode: mode, Balance: balance, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mode"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
		}).
		Create(&row).Error
}

// Adjust adds delta to the balance in place so concurrent adjustments compose. A missing row
// is created holding delta.
func (r *CashRepository) Adjust(ctx context.Context, mode model.TradingMode, delta decimal.Decimal) error {
	res := r.db.WithContext(ctx).
		Model(&model.CashBalance{}).
		Where("mode = ?", mode).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	row := model.CashBalance{Mode: mode, Balance: delta, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Create(&row).Error
}
