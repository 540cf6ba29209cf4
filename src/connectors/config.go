package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Alpaca market data is used for reference prices when a key pair is configured.
	AlpacaAPIKey    string        `envconfig:"ALPACA_API_KEY"`
	AlpacaAPISecret string        `envconfig:"ALPACA_API_SECRET"`
	AlpacaDataURL   string        `envconfig:"ALPACA_DATA_URL" default:""`
	QuoteTimeout    time.Duration `envconfig:"QUOTE_TIMEOUT" default:"10s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
