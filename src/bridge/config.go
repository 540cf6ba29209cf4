package bridge

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AdapterPath  string        `envconfig:"BROKER_ADAPTER_PATH" default:"./bin/broker-adapter"`
	Endpoint     string        `envconfig:"BROKER_ENDPOINT"`
	APIKey       string        `envconfig:"BROKER_API_KEY"`
	APISecret    string        `envconfig:"BROKER_API_SECRET"`
	Timeout      time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"30s"`
	ProbeTimeout time.Duration `envconfig:"BRIDGE_PROBE_TIMEOUT" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
