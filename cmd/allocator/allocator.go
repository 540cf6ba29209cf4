package allocator

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"valueinvestor/src/app"
	"valueinvestor/src/scheduler"
)

// Allocator runs the allocation loop without the read API.
type Allocator struct{}

func (t *Allocator) Start() error {
	config := scheduler.GetConfig()
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

	logrus.WithFields(logrus.Fields{
		"mode":   a.CurrentMode(),
		"period": config.LoopPeriod.String(),
	}).Info("Starting allocation scheduler")

	if err := a.Scheduler.Start(ctx, config.LoopPeriod); err != nil {
		logrus.WithError(err).Error("Failed to start scheduler loop")
		return err
	}

	<-ctx.Done()
	a.Scheduler.Stop()
	return nil
}
