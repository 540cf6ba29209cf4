package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/sirupsen/logrus"

	"valueinvestor/src/app"
	"valueinvestor/src/database"
	"valueinvestor/src/scheduler"
	"valueinvestor/src/server"
)

var (
	APP_NAME = os.Getenv("APP_NAME")
)

func SetupLogger() {
	config := database.GetConfig()

	level, err := logger.ParseLevel(strings.ToLower(config.LogLevel))
	if err != nil {
		level = logger.DebugLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(config.LogFormat, "json") {
		logger.SetFormatter(&logger.JSONFormatter{})
		return
	}
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
	}
	SetupLogger()
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start application")
	}

	// LOOP_PERIOD is read once; the other scheduler settings are re-read every cycle
	if err := a.Scheduler.Start(ctx, scheduler.GetConfig().LoopPeriod); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	server.StartServer(server.GetConfig(), server.NewRouter(a.Routes()))

	stop()
	a.Scheduler.Stop()
	logger.Info("Scheduler stopped")
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		//nolint
		time.Sleep(time.Second * 5)
	}
}
