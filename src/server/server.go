package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"valueinvestor/src/handler"
	"valueinvestor/src/ledger"
	"valueinvestor/src/repository"
)

// Routes are the collaborators of the read-only portfolio API.
type Routes struct {
	Ledger       *ledger.Ledger
	Transactions *repository.TransactionLogRepository
	Status       handler.StatusDeps
	// DefaultMode is the book read when a request names none.
	DefaultMode handler.ModeFunc
}

func NewRouter(routes Routes) *chi.Mux {
	// money and quantities go out as JSON numbers, absent values as null
	decimal.MarshalJSONWithoutQuotes = true

	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Get("/positions", handler.PositionsHandler(routes.Ledger, routes.DefaultMode))
	r.Get("/portfolio-summary", handler.PortfolioSummaryHandler(routes.Ledger, routes.DefaultMode))
	r.Get("/transactions", handler.TransactionsHandler(routes.Transactions, routes.DefaultMode))
	r.Get("/status", handler.StatusHandler(routes.Status))
	r.Get("/ws/portfolio-summary", handler.SummaryStreamHandler(routes.Ledger, routes.DefaultMode))

	return r
}

// StartServer serves h until SIGINT or SIGTERM, then shuts down gracefully.
func StartServer(cfg *Config, h http.Handler) {
	addr := cfg.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
