package universe

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// CSV with a header row of symbol,rank,fundamentals.
	File string `envconfig:"UNIVERSE_CSV" default:"universe.csv"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
