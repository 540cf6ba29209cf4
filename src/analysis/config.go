package analysis

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Endpoint     string        `envconfig:"ANALYSIS_ENDPOINT" default:"http://localhost:11434"`
	Model        string        `envconfig:"ANALYSIS_MODEL" default:"llama3.1:8b"`
	Timeout      time.Duration `envconfig:"ANALYSIS_TIMEOUT" default:"120s"`
	ProbeTimeout time.Duration `envconfig:"ANALYSIS_PROBE_TIMEOUT" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
