package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"valueinvestor/src/model"
	"valueinvestor/src/repository"
)

type symbolKey struct {
	mode   model.TradingMode
	symbol string
}

// Ledger owns positions and cash for every trading mode book. Changes are written to the
// database in one transaction and only then published to readers.
type Ledger struct {
	db         *gorm.DB
	positions  *repository.PositionRepository
	cash       *repository.CashRepository
	logs       *repository.TransactionLogRepository
	exceptions *repository.ExceptionRepository
	logger     *logrus.Entry
	now        func() time.Time

	// stateMu guards books for swaps and snapshots only.
	stateMu sync.RWMutex
	books   map[model.TradingMode]*book

	// rebuildMu lets Rebuild exclude every per-symbol writer at once.
	rebuildMu sync.RWMutex

	locksMu sync.Mutex
	locks   map[symbolKey]*sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]chan model.TradingMode
	nextSub int
}

func New(db *gorm.DB, logger *logrus.Entry) *Ledger {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ledger{
		db:         db,
		positions:  (&repository.PositionRepository{}).WithDB(db),
		cash:       (&repository.CashRepository{}).WithDB(db),
		logs:       (&repository.TransactionLogRepository{}).WithDB(db),
		exceptions: (&repository.ExceptionRepository{}).WithDB(db),
		logger:     logger.WithField("component", "ledger"),
		now:        func() time.Time { return time.Now().UTC() },
		locks:      map[symbolKey]*sync.Mutex{},
		subs:       map[int]chan model.TradingMode{},
	}
}

// Load reads every book from storage and replaces the in-memory state.
func (l *Ledger) Load(ctx context.Context) error {
	books := make(map[model.TradingMode]*book, len(model.TradingModes))
	for _, mode := range model.TradingModes {
		cash, err := l.cash.Get(ctx, mode)
		if err != nil {
			return fmt.Errorf("load %s cash: %w", mode, err)
		}
		rows, err := l.positions.ListByMode(ctx, mode)
		if err != nil {
			return fmt.Errorf("load %s positions: %w", mode, err)
		}
		b := newBook(cash)
		for _, p := range rows {
			b.positions[p.Symbol] = p
		}
		books[mode] = b
	}

	l.stateMu.Lock()
	l.books = books
	l.stateMu.Unlock()

	for _, mode := range model.TradingModes {
		l.notify(mode)
	}

	l.logger.Info("ledger loaded")
	return nil
}

func (l *Ledger) Loaded() bool {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	return l.books != nil
}

// Positions returns the held positions of one book, nil before Load.
func (l *Ledger) Positions(mode model.TradingMode) []model.Position {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	if l.books == nil {
		return nil
	}
	b, ok := l.books[mode]
	if !ok {
		return []model.Position{}
	}
	return b.held()
}

// Position returns one position of one book.
func (l *Ledger) Position(mode model.TradingMode, symbol string) (model.Position, bool) {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	if l.books == nil || l.books[mode] == nil {
		return model.Position{}, false
	}
	p, ok := l.books[mode].positions[symbol]
	return p, ok && p.Quantity.Valid
}

// Cash returns the cash of one book.
func (l *Ledger) Cash(mode model.TradingMode) decimal.Decimal {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	if l.books == nil || l.books[mode] == nil {
		return decimal.Zero
	}
	return l.books[mode].cash
}

// Summary derives the portfolio summary from one consistent snapshot.
func (l *Ledger) Summary(mode model.TradingMode) model.PortfolioSummary {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	if l.books == nil {
		return model.NewPortfolioSummary(decimal.Zero, nil)
	}
	b, ok := l.books[mode]
	if !ok {
		return model.NewPortfolioSummary(decimal.Zero, []model.Position{})
	}
	return model.NewPortfolioSummary(b.cash, b.held())
}

func (l *Ledger) IsHalted(mode model.TradingMode, symbol string) bool {
	l.stateMu.RLock()
	defer l.stateMu.RUnlock()
	if l.books == nil || l.books[mode] == nil {
		return false
	}
	return l.books[mode].positions[symbol].Halted
}

// Settle records entry in the transaction log and applies it to the book when it is a fill.
// Both writes share one database transaction. Non-fill entries only append.
func (l *Ledger) Settle(ctx context.Context, entry *model.TransactionLog) error {
	if entry.Outcome != model.OrderStatusFilled {
		return l.logs.Append(ctx, entry)
	}
	return l.apply(ctx, entry, true)
}

// ApplyFill applies an entry that is already in the log. Anything but FILLED is a no-op.
func (l *Ledger) ApplyFill(ctx context.Context, entry model.TransactionLog) error {
	if entry.Outcome != model.OrderStatusFilled {
		return nil
	}
	return l.apply(ctx, &entry, false)
}

func (l *Ledger) apply(ctx context.Context, entry *model.TransactionLog, appendLog bool) error {
	l.rebuildMu.RLock()
	defer l.rebuildMu.RUnlock()

	unlock := l.lock(entry.Mode, entry.Symbol)
	defer unlock()

	l.stateMu.RLock()
	if l.books == nil {
		l.stateMu.RUnlock()
		return ErrNotLoaded
	}
	var current model.Position
	if b := l.books[entry.Mode]; b != nil {
		current = b.positions[entry.Symbol]
	}
	l.stateMu.RUnlock()

	log := l.logger.WithFields(logrus.Fields{
		"mode":   entry.Mode,
		"symbol": entry.Symbol,
	})

	if current.Halted {
		if appendLog {
			if err := l.logs.Append(ctx, entry); err != nil {
				return err
			}
		}
		log.Warn("fill on halted symbol not applied")
		return fmt.Errorf("%w: %s %s", ErrSymbolHalted, entry.Mode, entry.Symbol)
	}

	next, err := l.next(current, *entry)
	if err != nil {
		if appendLog {
			if appendErr := l.logs.Append(ctx, entry); appendErr != nil {
				log.WithError(appendErr).Error("failed to record rejected fill")
			}
		}
		l.violation(ctx, *entry, err)
		return err
	}

	notional := entry.FilledNotional()
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if appendLog {
			if err := l.logs.WithDB(tx).Append(ctx, entry); err != nil {
				return err
			}
		}
		if err := l.positions.WithDB(tx).Upsert(ctx, &next); err != nil {
			return err
		}
		return l.cash.WithDB(tx).Adjust(ctx, entry.Mode, notional.Neg())
	})
	if err != nil {
		log.WithError(err).Error("failed to persist fill")
		return fmt.Errorf("persist fill for %s: %w", entry.Symbol, err)
	}

	l.stateMu.Lock()
	b := l.books[entry.Mode]
	if b == nil {
		b = newBook(decimal.Zero)
		l.books[entry.Mode] = b
	}
	b.positions[entry.Symbol] = next
	b.cash = b.cash.Sub(notional)
	l.stateMu.Unlock()

	log.WithFields(logrus.Fields{
		"filledQuantity": entry.FilledQuantity.Decimal.String(),
		"filledPrice":    entry.FilledPrice.Decimal.String(),
		"quantity":       next.Quantity.Decimal.String(),
		"averagePrice":   next.AveragePrice.Decimal.String(),
	}).Info("fill applied")

	l.notify(entry.Mode)
	return nil
}

func (l *Ledger) next(current model.Position, entry model.TransactionLog) (model.Position, error) {
	if err := checkFill(entry); err != nil {
		return current, err
	}
	next, err := fold(current, entry)
	if err != nil {
		return current, err
	}
	now := l.now()
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	return next, nil
}

// violation persists the failure and halts the symbol until an operator clears it.
func (l *Ledger) violation(ctx context.Context, entry model.TransactionLog, cause error) {
	log := l.logger.WithFields(logrus.Fields{
		"mode":   entry.Mode,
		"symbol": entry.Symbol,
	}).WithError(cause)
	log.Error("ledger invariant violation")

	// record even when the caller's context is already done
	ctx = context.WithoutCancel(ctx)

	payload, _ := json.Marshal(entry)
	exc := &model.Exception{
		Service: "valueinvestor",
		Module:  "ledger",
		Method:  "ApplyFill",
		Mode:    entry.Mode,
		Symbol:  entry.Symbol,
		Message: cause.Error(),
		Level:   "error",
		Context: string(payload),
	}
	if err := l.exceptions.Create(ctx, exc); err != nil {
		log.WithError(err).Error("failed to persist exception")
	}

	if entry.Symbol == "" || !entry.Mode.Valid() {
		return
	}
	if err := l.setHalted(ctx, entry.Mode, entry.Symbol, true, cause.Error()); err != nil {
		log.WithError(err).Error("failed to halt symbol")
	}
}

// Halt stops further fills on symbol until Unhalt.
func (l *Ledger) Halt(ctx context.Context, mode model.TradingMode, symbol, reason string) error {
	unlock := l.lock(mode, symbol)
	defer unlock()
	return l.setHalted(ctx, mode, symbol, true, reason)
}

// Unhalt clears a halt after the operator has checked the symbol.
func (l *Ledger) Unhalt(ctx context.Context, mode model.TradingMode, symbol string) error {
	unlock := l.lock(mode, symbol)
	defer unlock()
	return l.setHalted(ctx, mode, symbol, false, "")
}

func (l *Ledger) setHalted(ctx context.Context, mode model.TradingMode, symbol string, halted bool, reason string) error {
	if err := l.positions.SetHalted(ctx, mode, symbol, halted, reason); err != nil {
		return err
	}

	l.stateMu.Lock()
	if l.books != nil {
		b := l.books[mode]
		if b == nil {
			b = newBook(decimal.Zero)
			l.books[mode] = b
		}
		p := b.positions[symbol]
		p.Mode = mode
		p.Symbol = symbol
		p.Halted = halted
		p.HaltReason = reason
		b.positions[symbol] = p
	}
	l.stateMu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"mode":   mode,
		"symbol": symbol,
		"halted": halted,
	}).Warn("halt flag changed")

	l.notify(mode)
	return nil
}

// UpdatePrice marks a held position to market. Unknown or empty positions are ignored.
func (l *Ledger) UpdatePrice(ctx context.Context, mode model.TradingMode, symbol string, price decimal.Decimal) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: %s price %s", ErrInvariantViolation, symbol, price)
	}

	l.rebuildMu.RLock()
	defer l.rebuildMu.RUnlock()

	unlock := l.lock(mode, symbol)
	defer unlock()

	p, ok := l.Position(mode, symbol)
	if !ok {
		return nil
	}

	now := l.now()
	p.CurrentPrice = decimal.NewNullDecimal(price)
	p.PriceUpdatedAt = &now
	p.UpdatedAt = now
	if err := l.positions.Upsert(ctx, &p); err != nil {
		return fmt.Errorf("persist price for %s: %w", symbol, err)
	}

	l.stateMu.Lock()
	l.books[mode].positions[symbol] = p
	l.stateMu.Unlock()

	l.notify(mode)
	return nil
}

// Rebuild replays the FILLED log entries of one book on top of openingCash and replaces the
// stored book with the result. Halt flags and last prices survive the rebuild.
func (l *Ledger) Rebuild(ctx context.Context, mode model.TradingMode, openingCash decimal.Decimal) error {
	l.rebuildMu.Lock()
	defer l.rebuildMu.Unlock()

	entries, err := l.logs.ListFilled(ctx, mode)
	if err != nil {
		return fmt.Errorf("list fills: %w", err)
	}
	previous, err := l.positions.ListByMode(ctx, mode)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}

	fresh := newBook(openingCash)
	for _, entry := range entries {
		next, err := l.next(fresh.positions[entry.Symbol], entry)
		if err != nil {
			l.logger.WithError(err).WithField("entry", entry.ID).Warn("skipping entry during rebuild")
			continue
		}
		fresh.positions[entry.Symbol] = next
		fresh.cash = fresh.cash.Sub(entry.FilledNotional())
	}
	for _, p := range previous {
		next, ok := fresh.positions[p.Symbol]
		if !ok {
			if p.Halted {
				fresh.positions[p.Symbol] = model.Position{Mode: mode, Symbol: p.Symbol, Halted: true, HaltReason: p.HaltReason, CreatedAt: p.CreatedAt, UpdatedAt: l.now()}
			}
			continue
		}
		next.Halted = p.Halted
		next.HaltReason = p.HaltReason
		if p.CurrentPrice.Valid {
			next.CurrentPrice = p.CurrentPrice
			next.PriceUpdatedAt = p.PriceUpdatedAt
		}
		fresh.positions[p.Symbol] = next
	}

	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := l.positions.WithDB(tx).DeleteByMode(ctx, mode); err != nil {
			return err
		}
		for _, p := range fresh.positions {
			p.ID = 0
			if err := l.positions.WithDB(tx).Upsert(ctx, &p); err != nil {
				return err
			}
		}
		return l.cash.WithDB(tx).Set(ctx, mode, fresh.cash)
	})
	if err != nil {
		return fmt.Errorf("persist rebuilt %s book: %w", mode, err)
	}

	l.stateMu.Lock()
	if l.books == nil {
		l.books = map[model.TradingMode]*book{}
	}
	l.books[mode] = fresh
	l.stateMu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"mode":      mode,
		"fills":     len(entries),
		"positions": len(fresh.positions),
		"cash":      fresh.cash.String(),
	}).Info("ledger rebuilt from transaction log")

	l.notify(mode)
	return nil
}

func (l *Ledger) lock(mode model.TradingMode, symbol string) func() {
	key := symbolKey{mode: mode, symbol: symbol}
	l.locksMu.Lock()
	mu, ok := l.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[key] = mu
	}
	l.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// Subscribe returns a channel that receives the mode of every book that changed. Sends never
// block; when the channel is full the notification is dropped, so readers re-read on any value.
func (l *Ledger) Subscribe() (<-chan model.TradingMode, func()) {
	ch := make(chan model.TradingMode, len(model.TradingModes))

	l.subsMu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.subsMu.Lock()
			delete(l.subs, id)
			l.subsMu.Unlock()
		})
	}
}

func (l *Ledger) notify(mode model.TradingMode) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	for _, ch := range l.subs {
		select {
		case ch <- mode:
		default:
		}
	}
}

// IsViolation reports whether err came from a rejected ledger mutation.
func IsViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation) || errors.Is(err, ErrSymbolHalted)
}
