package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"valueinvestor/src/database"
	"valueinvestor/src/model"
)

// TransactionLogRepository is append-only: there is no update or delete.
type TransactionLogRepository struct {
	db *gorm.DB
}

// NewTransactionLogRepository creates a new repository instance using the main read/write database.
func NewTransactionLogRepository() *TransactionLogRepository {
	return &TransactionLogRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TransactionLogRepository) WithDB(db *gorm.DB) *TransactionLogRepository {
	return &TransactionLogRepository{db: db}
}

// Append inserts entry and fills in its ID.
func (r *TransactionLogRepository) Append(ctx context.Context, entry *model.TransactionLog) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "TransactionLogRepository",
		"op":      "Append",
		"cycle":   entry.CycleID,
		"mode":    entry.Mode,
		"symbol":  entry.Symbol,
		"outcome": entry.Outcome,
	}).Debug("Appending transaction log entry")

	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}
	entry.ExecutedAt = entry.ExecutedAt.UTC()

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TransactionLogRepository",
			"op":     "Append",
			"symbol": entry.Symbol,
		}).WithError(err).Error("Failed to append transaction log entry")
		return err
	}
	return nil
}

// ListSince returns the entries of one book executed at or after from, oldest first.
// Timestamps are stored in UTC, and sqlite compares them as text.
func (r *TransactionLogRepository) ListSince(
	ctx context.Context,
	mode model.TradingMode,
	from time.Time,
) ([]model.TransactionLog, error) {
	var entries []model.TransactionLog
	err := r.db.WithContext(ctx).
		Where("mode = ? AND executed_at >= ?", mode, from.UTC()).
		Order("executed_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// ListFilled returns every FILLED entry of one book in the order it was applied.
func (r *TransactionLogRepository) ListFilled(ctx context.Context, mode model.TradingMode) ([]model.TransactionLog, error) {
	var entries []model.TransactionLog
	err := r.db.WithContext(ctx).
		Where("mode = ? AND outcome = ?", mode, model.OrderStatusFilled).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// Unresolved returns live entries whose broker outcome is unknown and that no later entry
// reconciles yet.
func (r *TransactionLogRepository) Unresolved(ctx context.Context, mode model.TradingMode) ([]model.TransactionLog, error) {
	resolved := r.db.Model(&model.TransactionLog{}).
		Select("reconciles_id").
		Where("reconciles_id IS NOT NULL")

	var entries []model.TransactionLog
	err := r.db.WithContext(ctx).
		Where("mode = ?", mode).
		Where("(outcome = ? OR (outcome = ? AND error_kind = ?))",
			model.OrderStatusPending, model.OrderStatusError, model.ErrorKindExecutionTimeout).
		Where("id NOT IN (?)", resolved).
		Order("id ASC").
		Find(&entries).Error
	return entries, err
}

// Latest returns the newest entries of one book, newest first.
func (r *TransactionLogRepository) Latest(
	ctx context.Context,
	mode model.TradingMode,
	limit int,
) ([]model.TransactionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []model.TransactionLog
	err := r.db.WithContext(ctx).
		Where("mode = ?", mode).
		Order("executed_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
