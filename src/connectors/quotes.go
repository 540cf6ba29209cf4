package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrNoQuote means no source could price the symbol.
var ErrNoQuote = errors.New("no quote available")

// QuoteSource returns the last known price of a symbol.
type QuoteSource interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// QuoteSourceFunc adapts a function to QuoteSource.
type QuoteSourceFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f QuoteSourceFunc) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}

// AlpacaQuotes prices symbols from the latest Alpaca trade.
type AlpacaQuotes struct {
	md *marketdata.Client
}

func NewAlpacaQuotes(cfg Config) *AlpacaQuotes {
	return &AlpacaQuotes{
		md: marketdata.NewClient(marketdata.ClientOpts{
			BaseURL:    cfg.AlpacaDataURL,
			APIKey:     cfg.AlpacaAPIKey,
			APISecret:  cfg.AlpacaAPISecret,
			RetryLimit: 1,
			HTTPClient: &http.Client{Timeout: cfg.QuoteTimeout},
		}),
	}
}

func (a *AlpacaQuotes) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	trade, err := a.md.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("alpaca latest trade %s: %w", symbol, err)
	}
	if trade == nil || trade.Price <= 0 {
		return decimal.Zero, fmt.Errorf("%w: alpaca has no trade for %s", ErrNoQuote, symbol)
	}
	return decimal.NewFromFloat(trade.Price), nil
}

// QuoteChain asks each source in turn and returns the first positive price. Prices from the
// first source are handed to Record so the later sources can fall back to them.
type QuoteChain struct {
	Sources []QuoteSource
	Record  func(ctx context.Context, symbol string, price decimal.Decimal) error
	Logger  *logrus.Entry
}

func (c *QuoteChain) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	log := c.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	for i, source := range c.Sources {
		price, err := source.LastPrice(ctx, symbol)
		if err != nil {
			log.WithError(err).WithFields(logrus.Fields{"symbol": symbol, "source": i}).Debug("quote source failed")
			continue
		}
		if !price.IsPositive() {
			continue
		}
		if c.Record != nil && i == 0 {
			if err := c.Record(ctx, symbol, price); err != nil {
				log.WithError(err).WithField("symbol", symbol).Warn("failed to store quote")
			}
		}
		return price, nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s", ErrNoQuote, symbol)
}
