package ledgerops

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"valueinvestor/src/database"
	"valueinvestor/src/ledger"
	"valueinvestor/src/model"
)

// LedgerOps are the operator actions on a stopped or running ledger.
type LedgerOps struct {
	Log *logrus.Entry
}

// ParseMode accepts the book names case-insensitively. Unlike the scheduler it never falls
// back: an operator action on the wrong book is refused.
func ParseMode(raw string) (model.TradingMode, error) {
	m := model.TradingMode(strings.ToUpper(strings.TrimSpace(raw)))
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q, expected SIMULATION or LIVE", raw)
	}
	return m, nil
}

func (o *LedgerOps) open(ctx context.Context) (*ledger.Ledger, error) {
	if err := database.InitMainDB(); err != nil {
		return nil, fmt.Errorf("connect main database: %w", err)
	}
	l := ledger.New(database.MainDB, o.Log)
	if err := l.Load(ctx); err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return l, nil
}

// Unhalt clears the halt on one symbol.
func (o *LedgerOps) Unhalt(ctx context.Context, rawMode, symbol string) error {
	m, err := ParseMode(rawMode)
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	l, err := o.open(ctx)
	if err != nil {
		return err
	}
	if !l.IsHalted(m, symbol) {
		o.Log.WithFields(logrus.Fields{"mode": m, "symbol": symbol}).Info("symbol is not halted")
		return nil
	}
	return l.Unhalt(ctx, m, symbol)
}

// Rebuild replays the transaction log of one book from its configured opening cash.
func (o *LedgerOps) Rebuild(ctx context.Context, rawMode string) error {
	m, err := ParseMode(rawMode)
	if err != nil {
		return err
	}

	l, err := o.open(ctx)
	if err != nil {
		return err
	}
	return l.Rebuild(ctx, m, OpeningCash(database.GetConfig(), m))
}

func OpeningCash(config database.Config, m model.TradingMode) decimal.Decimal {
	if m.IsLive() {
		return config.InitialLiveCash
	}
	return config.InitialSimulationCash
}
