package runonce

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"valueinvestor/src/app"
)

// RunOnce runs a single cycle now and writes its report as JSON.
type RunOnce struct {
	Out io.Writer
}

func (t *RunOnce) Start() error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to start application")
		return err
	}

	report, err := a.Scheduler.RunOnce(ctx)
	if err != nil {
		logrus.WithError(err).WithField("cycle", report.ID).Error("Cycle failed")
		return err
	}

	out := t.Out
	if out == nil {
		out = os.Stdout
	}
	decimal.MarshalJSONWithoutQuotes = true
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
