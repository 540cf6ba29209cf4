package mode

import (
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"valueinvestor/src/model"
)

// Resolution is the outcome of resolving a configured trading mode string.
type Resolution struct {
	Mode     model.TradingMode
	Raw      string
	Fallback bool
}

var fallbacks atomic.Int64

// Resolve maps configuration to a trading mode. Anything that is not recognised resolves to
// SIMULATION; it never fails open to LIVE. Each fallback is counted and logged, so call it once
// per cycle.
func Resolve(raw string) Resolution {
	resolution := Lookup(raw)
	if !resolution.Fallback {
		return resolution
	}

	fallbacks.Add(1)
	logrus.WithFields(logrus.Fields{
		"component":  "mode",
		"configured": raw,
		"resolved":   resolution.Mode,
	}).Warn("unrecognized trading mode, falling back to simulation")

	return resolution
}

// Lookup resolves like Resolve without counting or logging the fallback.
func Lookup(raw string) Resolution {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "live":
		return Resolution{Mode: model.TradingModeLive, Raw: raw}
	case "simulation", "paper":
		return Resolution{Mode: model.TradingModeSimulation, Raw: raw}
	}
	return Resolution{Mode: model.TradingModeSimulation, Raw: raw, Fallback: true}
}

// FallbackCount is the number of fallback resolutions since process start.
func FallbackCount() int64 {
	return fallbacks.Load()
}
