package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"valueinvestor/src/model"
)

// ReadOnlyDB serves the candidate universe. It points at MainDB unless DATABASE_URL_READONLY
// names a separate fundamentals database; that user should have SELECT-only permissions.
var ReadOnlyDB *gorm.DB

// InitReadOnlyDB initializes the read-only connection. It never runs migrations.
func InitReadOnlyDB() error {
	config := GetConfig()
	if config.DatabaseURLReadOnly == "" {
		ReadOnlyDB = MainDB
		logrus.Info("[ReadOnlyDB] DATABASE_URL_READONLY not set, using MainDB")
		return nil
	}

	db, err := Open(config.Driver, config.DatabaseURLReadOnly, config.GormLogLevel)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB from ReadOnlyDB: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping ReadOnlyDB: %w", err)
	}

	var count int64
	if err := db.Model(&model.StockFundamental{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to access stock_fundamentals: %w", err)
	}

	logrus.WithFields(map[string]interface{}{"count": count}).Info("[ReadOnlyDB] stock_fundamentals reachable")

	ReadOnlyDB = db

	return nil
}

// Reader returns the connection universe reads should use.
func Reader() *gorm.DB {
	if ReadOnlyDB != nil {
		return ReadOnlyDB
	}
	return MainDB
}
