package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"valueinvestor/src/database"
	"valueinvestor/src/model"
)

// PositionRepository persists the canonical position fields of every book.
type PositionRepository struct {
	db *gorm.DB
}

// NewPositionRepository creates a new repository instance using the main read/write database.
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *PositionRepository) WithDB(db *gorm.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// ListByMode returns the positions of one book ordered by symbol.
func (r *PositionRepository) ListByMode(ctx context.Context, mode model.TradingMode) ([]model.Position, error) {
	var positions []model.Position
	err := r.db.WithContext(ctx).
		Where("mode = ?", mode).
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "PositionRepository",
			"op":   "ListByMode",
			"mode": mode,
		}).WithError(err).Error("Failed to list positions")
		return nil, err
	}
	return positions, nil
}

// Upsert writes the position keyed by (mode, symbol). The surrogate ID is never written so the
// conflict target stays the natural key.
func (r *PositionRepository) Upsert(ctx context.Context, position *model.Position) error {
	row := *position
	row.ID = 0
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "mode"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"quantity", "average_price", "current_price", "price_updated_at",
				"halted", "halt_reason", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "PositionRepository",
			"op":     "Upsert",
			"mode":   position.Mode,
			"symbol": position.Symbol,
		}).WithError(err).Error("Failed to upsert position")
		return err
	}
	return nil
}

// SetHalted flags or clears a halt on one symbol. A missing row is created so a symbol can be
// halted before it is ever held.
func (r *PositionRepository) SetHalted(
	ctx context.Context,
	mode model.TradingMode,
	symbol string,
	halted bool,
	reason string,
) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "PositionRepository",
		"op":     "SetHalted",
		"mode":   mode,
		"symbol": symbol,
		"halted": halted,
	}).Info("Updating halt flag")

	now := time.Now().UTC()
	row := model.Position{Mode: mode, Symbol: symbol, Halted: halted, HaltReason: reason, CreatedAt: now, UpdatedAt: now}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "mode"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"halted", "halt_reason", "updated_at"}),
		}).
		Create(&row).Error
}

// DeleteByMode removes every position of one book. Used before replaying the log.
func (r *PositionRepository) DeleteByMode(ctx context.Context, mode model.TradingMode) error {
	return r.db.WithContext(ctx).Where("mode = ?", mode).Delete(&model.Position{}).Error
}
