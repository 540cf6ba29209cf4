package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	LogLevel  string `envconfig:"LOG_LEVEL" default:"debug"` // Expected to hold values like "debug", "info", "warn", "error"
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"` // Expected to hold values like "json" or "text"

	// Driver is "sqlite" or "postgres".
	Driver              string `envconfig:"DB_DRIVER" default:"sqlite"`
	DatabaseURLMain     string `envconfig:"DATABASE_URL_MAIN" default:"valueinvestor.db"`
	DatabaseURLReadOnly string `envconfig:"DATABASE_URL_READONLY" default:""`
	GormLogLevel        int    `envconfig:"GORM_LOG_LEVEL" default:"2"`

	// Opening cash per book, applied once by the seed migration.
	InitialSimulationCash decimal.Decimal `envconfig:"INITIAL_SIMULATION_CASH" default:"0"`
	InitialLiveCash       decimal.Decimal `envconfig:"INITIAL_LIVE_CASH" default:"0"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
