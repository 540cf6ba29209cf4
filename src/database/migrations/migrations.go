// package migrations
package migrations

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"valueinvestor/src/model"
)

// DataMigration tracks executed data migrations (like Django).
// Table name is fixed to avoid collisions with other models.
type DataMigration struct {
	ID        string    `gorm:"primaryKey;size:200;column:id"`
	AppliedAt time.Time `gorm:"not null;column:applied_at"`
}

func (DataMigration) TableName() string { return "data_migrations" }

func ensureDataMigrationsTable(db *gorm.DB) error {
	return db.AutoMigrate(&DataMigration{})
}

// RunOnce runs fn only if migrationID was not executed before.
// It records the migration as executed only after fn succeeds.
func RunOnce(db *gorm.DB, migrationID string, fn func(*gorm.DB) error) error {
	if db == nil {
		return nil
	}
	if migrationID == "" {
		return fmt.Errorf("migration id is empty")
	}
	if fn == nil {
		return fmt.Errorf("migration %q has nil fn", migrationID)
	}

	if err := ensureDataMigrationsTable(db); err != nil {
		return fmt.Errorf("ensure data migrations table: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var m DataMigration
		err := tx.First(&m, "id = ?", migrationID).Error
		if err == nil {
			// already applied
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check migration %q: %w", migrationID, err)
		}

		// execute migration work
		if err := fn(tx); err != nil {
			return fmt.Errorf("run migration %q: %w", migrationID, err)
		}

		// record as applied
		rec := DataMigration{
			ID:        migrationID,
			AppliedAt: time.Now().UTC(),
		}
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("record migration %q: %w", migrationID, err)
		}

		return nil
	})
}

// Seed carries the values data migrations need from configuration.
type Seed struct {
	InitialCash map[model.TradingMode]decimal.Decimal
}

// Run executes all data migrations that go beyond schema auto-migrations.
// Append new migrations at the bottom with a stable unique id.
func Run(db *gorm.DB, seed Seed) error {
	if db == nil {
		return nil
	}

	if err := RunOnce(db, "00001_seed_cash_balances", seedCashBalances(seed)); err != nil {
		return err
	}

	return nil
}

// seedCashBalances opens one cash row per book. Existing rows are left alone so a database that
// already traded keeps its balance.
func seedCashBalances(seed Seed) func(*gorm.DB) error {
	return func(tx *gorm.DB) error {
		for _, mode := range model.TradingModes {
			row := model.CashBalance{
				Mode:      mode,
				Balance:   seed.InitialCash[mode],
				UpdatedAt: time.Now().UTC(),
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("seed cash balance for %s: %w", mode, err)
			}
		}
		return nil
	}
}
