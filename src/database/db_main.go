package database

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"valueinvestor/src/database/migrations"
	"valueinvestor/src/model"
)

// MainDB is the primary read/write database connection used by the application.
var MainDB *gorm.DB

// InitMainDB opens the main database and runs migrations.
// This should be called once at application startup (e.g. in main()).
func InitMainDB() error {
	config := GetConfig()

	db, err := Open(config.Driver, config.DatabaseURLMain, config.GormLogLevel)
	if err != nil {
		return err
	}

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.WithFields(map[string]interface{}{"driver": config.Driver}).Info("[database] MainDB connection established")

	if err := Migrate(MainDB, config); err != nil {
		return err
	}

	logrus.Info("[database] MainDB migrations completed")

	return nil
}

// Migrate creates the schema and applies the data migrations.
func Migrate(db *gorm.DB, config Config) error {
	if err := db.AutoMigrate(
		&model.Position{},
		&model.CashBalance{},
		&model.TransactionLog{},
		&model.StockFundamental{},
		&model.Exception{},
		&migrations.DataMigration{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on MainDB: %w", err)
	}

	seed := migrations.Seed{
		InitialCash: map[model.TradingMode]decimal.Decimal{
			model.TradingModeSimulation: config.InitialSimulationCash,
			model.TradingModeLive:       config.InitialLiveCash,
		},
	}
	if err := migrations.Run(db, seed); err != nil {
		return fmt.Errorf("failed to run data migrations on MainDB: %w", err)
	}

	return nil
}
