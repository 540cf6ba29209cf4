package server

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the read API listener.
type Config struct {
	Port              string        `envconfig:"PORT" default:"9898"`
	ReadHeaderTimeout time.Duration `envconfig:"API_READ_HEADER_TIMEOUT" default:"10s"`
	ShutdownTimeout   time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"5s"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing api config: %w", err))
	}
	return &config
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
