package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"valueinvestor/src/analysis"
	"valueinvestor/src/bridge"
	"valueinvestor/src/connectors"
	"valueinvestor/src/database"
	"valueinvestor/src/handler"
	"valueinvestor/src/ledger"
	"valueinvestor/src/mode"
	"valueinvestor/src/model"
	"valueinvestor/src/repository"
	"valueinvestor/src/scheduler"
	"valueinvestor/src/server"
)

// App holds the wired components of one process.
type App struct {
	Ledger       *ledger.Ledger
	Analysis     *analysis.Engine
	Bridge       *bridge.Bridge
	Scheduler    *scheduler.Scheduler
	Universe     *repository.StockFundamentalRepository
	Transactions *repository.TransactionLogRepository

	// mode read at startup, used until the first cycle reports one
	startup mode.Resolution
}

// New connects the databases, loads the ledger and wires the scheduler.
func New(ctx context.Context) (*App, error) {
	if err := database.InitMainDB(); err != nil {
		return nil, fmt.Errorf("connect main database: %w", err)
	}
	if err := database.InitReadOnlyDB(); err != nil {
		return nil, fmt.Errorf("connect read-only database: %w", err)
	}

	l := ledger.New(database.MainDB, logrus.WithField("app", "valueinvestor"))
	if err := l.Load(ctx); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	universe := repository.NewStockFundamentalRepository()
	transactions := repository.NewTransactionLogRepository()
	engine := analysis.NewEngineFromConfig(analysis.GetConfig(), logrus.NewEntry(logrus.StandardLogger()))
	b := bridge.New(bridge.GetConfig(), logrus.NewEntry(logrus.StandardLogger()))

	a := &App{
		Ledger:       l,
		Analysis:     engine,
		Bridge:       b,
		Universe:     universe,
		Transactions: transactions,
		startup:      startupMode(),
	}
	a.Scheduler = scheduler.New(scheduler.Deps{
		Ledger:   l,
		Analyzer: engine,
		Executor: b,
		Universe: universe,
		Journal:  transactions,
		Quotes:   a.quotes(),
		Logger:   logrus.NewEntry(logrus.StandardLogger()),
	})
	return a, nil
}

// quotes prices from Alpaca when keys are configured, then from the last stored price, then
// from the price the ledger last marked the position at.
func (a *App) quotes() *connectors.QuoteChain {
	cfg := connectors.GetConfig()

	var sources []connectors.QuoteSource
	if cfg.AlpacaAPIKey != "" && cfg.AlpacaAPISecret != "" {
		sources = append(sources, connectors.NewAlpacaQuotes(cfg))
	} else {
		logrus.Warn("ALPACA_API_KEY not set, pricing from stored prices only")
	}

	sources = append(sources,
		connectors.QuoteSourceFunc(func(ctx context.Context, symbol string) (decimal.Decimal, error) {
			price, err := a.Universe.LastPrice(ctx, symbol)
			if err != nil {
				return decimal.Zero, err
			}
			if !price.Valid {
				return decimal.Zero, connectors.ErrNoQuote
			}
			return price.Decimal, nil
		}),
		connectors.QuoteSourceFunc(func(_ context.Context, symbol string) (decimal.Decimal, error) {
			for _, m := range model.TradingModes {
				if p, ok := a.Ledger.Position(m, symbol); ok && p.CurrentPrice.Valid {
					return p.CurrentPrice.Decimal, nil
				}
			}
			return decimal.Zero, connectors.ErrNoQuote
		}),
	)

	chain := &connectors.QuoteChain{
		Sources: sources,
		Logger:  logrus.WithField("component", "quotes"),
	}
	if len(sources) == 3 {
		chain.Record = a.Universe.UpdateLastPrice
	}
	return chain
}

// startupMode reads TRADING_MODE once. An unreadable configuration resolves like an unknown
// mode.
func startupMode() mode.Resolution {
	cfg, err := scheduler.LoadConfig()
	if err != nil {
		logrus.WithError(err).Warn("failed to read scheduler config")
		return mode.Lookup("")
	}
	return mode.Lookup(cfg.TradingMode)
}

// ModeResolution is the mode the last cycle ran in, or the startup mode before the first
// cycle. Reads never re-resolve the configuration.
func (a *App) ModeResolution() mode.Resolution {
	if a.Scheduler != nil {
		if report, ok := a.Scheduler.LastReport(); ok {
			return fromReport(report)
		}
	}
	return a.startup
}

// CurrentMode is the book reads default to.
func (a *App) CurrentMode() model.TradingMode {
	return a.ModeResolution().Mode
}

func fromReport(report scheduler.Report) mode.Resolution {
	return mode.Resolution{
		Mode:     report.Mode,
		Raw:      report.Configured,
		Fallback: report.ModeFallback,
	}
}

// Routes wires the read API to this process.
func (a *App) Routes() server.Routes {
	return server.Routes{
		Ledger:       a.Ledger,
		Transactions: a.Transactions,
		Status: handler.StatusDeps{
			Resolve:    a.ModeResolution,
			Broker:     a.Bridge,
			Analysis:   a.Analysis,
			Scheduler:  a.Scheduler,
			Exceptions: repository.NewExceptionRepository(),
		},
		DefaultMode: a.CurrentMode,
	}
}
