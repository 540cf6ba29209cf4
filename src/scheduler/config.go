package scheduler

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config is the immutable snapshot one cycle runs with. It is loaded fresh at the start of
// every cycle so edits apply on the next one without a restart.
type Config struct {
	MonthlyInvestmentAmount  decimal.Decimal `envconfig:"MONTHLY_INVESTMENT_AMOUNT" default:"0"`
	TargetWeeklyAmount       decimal.Decimal `envconfig:"TARGET_WEEKLY_AMOUNT" default:"0"`
	TradingMode              string          `envconfig:"TRADING_MODE" default:"SIMULATION"`
	StartFromZero            bool            `envconfig:"START_FROM_ZERO" default:"true"`
	StockUniverseInitialSize int             `envconfig:"STOCK_UNIVERSE_INITIAL_SIZE" default:"25"`

	MaxOrdersPerCycle   int             `envconfig:"MAX_ORDERS_PER_CYCLE" default:"3"`
	QuantityPrecision   int32           `envconfig:"QUANTITY_PRECISION" default:"6"`
	MinOrderAmount      decimal.Decimal `envconfig:"MIN_ORDER_AMOUNT" default:"1"`
	AnalysisConcurrency int             `envconfig:"ANALYSIS_CONCURRENCY" default:"4"`
	Timezone            string          `envconfig:"SCHEDULE_TIMEZONE" default:"America/New_York"`

	LoopPeriod time.Duration `envconfig:"LOOP_PERIOD" default:"168h"`
	// EnvFile is re-read before every cycle when set.
	EnvFile string `envconfig:"ENV_FILE" default:""`
}

// LoadConfig re-reads the env file, if any, and then the environment.
func LoadConfig() (Config, error) {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("reload %s: %w", envFile, err)
		}
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return Config{}, fmt.Errorf("error processing env config: %w", err)
	}
	return config, nil
}

func GetConfig() Config {
	config, err := LoadConfig()
	if err != nil {
		panic(err)
	}
	return config
}

// Location is where period boundaries are computed. Unknown zones fall back to UTC.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logrus.WithError(err).WithField("timezone", c.Timezone).Warn("unknown SCHEDULE_TIMEZONE, using UTC")
		return time.UTC
	}
	return loc
}

func (c Config) budget() Budget {
	return Budget{
		Monthly:       c.MonthlyInvestmentAmount,
		Weekly:        c.TargetWeeklyAmount,
		StartFromZero: c.StartFromZero,
	}
}
