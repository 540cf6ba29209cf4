package probe

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"valueinvestor/src/analysis"
	"valueinvestor/src/bridge"
	"valueinvestor/src/mode"
	"valueinvestor/src/model"
	"valueinvestor/src/scheduler"
)

type brokerProber interface {
	Probe(ctx context.Context, mode model.TradingMode) bool
}

type analysisProber interface {
	Available(ctx context.Context) bool
	ModelAvailable(ctx context.Context) (bool, error)
	Model() string
}

// Probe checks the external collaborators without placing an order.
type Probe struct {
	Broker   brokerProber
	Analysis analysisProber
	Out      io.Writer
}

func New() *Probe {
	log := logrus.NewEntry(logrus.StandardLogger())
	return &Probe{
		Broker:   bridge.New(bridge.GetConfig(), log),
		Analysis: analysis.NewEngineFromConfig(analysis.GetConfig(), log),
		Out:      os.Stdout,
	}
}

// Run prints one line per check and fails when anything the configured mode needs is down.
func (p *Probe) Run(ctx context.Context, raw string) error {
	resolution := mode.Resolve(raw)
	out := p.Out
	if out == nil {
		out = os.Stdout
	}

	_, _ = fmt.Fprintf(out, "mode: %s (configured %q, fallback %t)\n", resolution.Mode, resolution.Raw, resolution.Fallback)

	var failed []string
	broker := p.Broker.Probe(ctx, resolution.Mode)
	_, _ = fmt.Fprintf(out, "broker adapter: %s\n", upDown(broker))
	if !broker {
		failed = append(failed, "broker adapter")
	}

	reachable := p.Analysis.Available(ctx)
	_, _ = fmt.Fprintf(out, "analysis engine: %s\n", upDown(reachable))
	if !reachable {
		failed = append(failed, "analysis engine")
	} else {
		present, err := p.Analysis.ModelAvailable(ctx)
		if err != nil || !present {
			failed = append(failed, "analysis model")
		}
		_, _ = fmt.Fprintf(out, "analysis model %s: %s\n", p.Analysis.Model(), upDown(present))
	}

	if len(failed) > 0 {
		return fmt.Errorf("probe failed: %v", failed)
	}
	return nil
}

// ConfiguredMode is the raw TRADING_MODE the scheduler would use.
func ConfiguredMode() string {
	cfg, err := scheduler.LoadConfig()
	if err != nil {
		return ""
	}
	return cfg.TradingMode
}

func upDown(ok bool) string {
	if ok {
		return "ok"
	}
	return "unreachable"
}
