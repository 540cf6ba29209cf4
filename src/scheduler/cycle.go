package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"valueinvestor/src/bridge"
	"valueinvestor/src/ledger"
	"valueinvestor/src/mode"
	"valueinvestor/src/model"
	"valueinvestor/src/utils"
)

// State is where the scheduler is inside a cycle.
type State string

const (
	StateIdle      State = "IDLE"
	StateSizing    State = "SIZING"
	StateAnalyzing State = "ANALYZING"
	StateExecuting State = "EXECUTING"
	StateSettling  State = "SETTLING"
)

// Skip reasons reported when a cycle deploys nothing.
const (
	SkipNoCapital           = "no capital available"
	SkipAnalysisUnavailable = "analysis unavailable"
	SkipNoCandidates        = "no buy candidates"
	SkipLedgerNotLoaded     = "ledger not loaded"
)

// Analyzer scores one candidate.
type Analyzer interface {
	Analyze(ctx context.Context, symbol, fundamentals string) (model.Recommendation, error)
	Available(ctx context.Context) bool
}

// Executor places one order and answers reconciliation queries.
type Executor interface {
	Execute(ctx context.Context, req bridge.OrderRequest, mode model.TradingMode) (model.OrderResult, error)
	QueryPosition(ctx context.Context, symbol string) (bridge.BrokerPosition, error)
}

// Universe lists the candidates in rank order.
type Universe interface {
	Universe(ctx context.Context, limit int) ([]model.StockFundamental, error)
}

// Journal reads the transaction log.
type Journal interface {
	ListSince(ctx context.Context, mode model.TradingMode, from time.Time) ([]model.TransactionLog, error)
	Unresolved(ctx context.Context, mode model.TradingMode) ([]model.TransactionLog, error)
}

// Quotes prices a symbol.
type Quotes interface {
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Report describes one finished cycle.
type Report struct {
	ID           string                 `json:"id"`
	Mode         model.TradingMode      `json:"mode"`
	ModeFallback bool                   `json:"modeFallback"`
	Configured   string                 `json:"configuredMode"`
	StartedAt    time.Time              `json:"startedAt"`
	FinishedAt   time.Time              `json:"finishedAt"`
	Available    decimal.Decimal        `json:"available"`
	Deployed     decimal.Decimal        `json:"deployed"`
	Candidates   int                    `json:"candidates"`
	Picks        []model.Recommendation `json:"picks"`
	Orders       []model.TransactionLog `json:"orders"`
	Reconciled   int                    `json:"reconciled"`
	Skipped      string                 `json:"skipped,omitempty"`
	Cancelled    bool                   `json:"cancelled"`
}

type candidate struct {
	rec   model.Recommendation
	stock model.StockFundamental
}

// RunCycle runs IDLE → SIZING → ANALYZING → EXECUTING → SETTLING → IDLE once with cfg.
// External failures become skips recorded in the report; the returned error is only for
// failures of the scheduler's own storage.
func (s *Scheduler) RunCycle(ctx context.Context, cfg Config) (report Report, err error) {
	if !s.running.CompareAndSwap(false, true) {
		return Report{}, ErrCycleInProgress
	}
	defer s.running.Store(false)
	defer s.setState(StateIdle)

	loc := cfg.Location()
	resolution := mode.Resolve(cfg.TradingMode)
	report = Report{
		ID:           uuid.NewString(),
		Mode:         resolution.Mode,
		ModeFallback: resolution.Fallback,
		Configured:   resolution.Raw,
		StartedAt:    s.clock.Now().In(loc),
		Available:    decimal.Zero,
		Deployed:     decimal.Zero,
	}
	log := s.logger.WithFields(logrus.Fields{
		"cycle": report.ID,
		"mode":  report.Mode,
	})
	log.Info("cycle started")

	defer func() {
		report.FinishedAt = s.clock.Now().In(loc)
		s.setLastReport(report)
		log.WithFields(logrus.Fields{
			"orders":   len(report.Orders),
			"deployed": report.Deployed.String(),
			"skipped":  report.Skipped,
		}).Info("cycle finished")
	}()

	if !s.ledger.Loaded() {
		report.Skipped = SkipLedgerNotLoaded
		return report, ledger.ErrNotLoaded
	}

	// SIZING
	s.setState(StateSizing)
	if report.Mode.IsLive() {
		n, err := s.reconcile(ctx, report.ID, log)
		report.Reconciled = n
		if err != nil {
			log.WithError(err).Error("reconciliation failed")
		}
	}

	now := s.clock.Now().In(loc)
	entries, err := s.journal.ListSince(ctx, report.Mode, utils.MonthStart(now))
	if err != nil {
		report.Skipped = "transaction log unavailable"
		return report, fmt.Errorf("read transaction log: %w", err)
	}
	report.Available = AvailableCapital(cfg.budget(), now, DeployedCapital(entries, now))
	log.WithField("available", report.Available.String()).Info("capital sized")

	if report.Available.LessThan(cfg.MinOrderAmount) || !report.Available.IsPositive() {
		report.Skipped = SkipNoCapital
		s.markToMarket(ctx, report.Mode, log)
		return report, nil
	}

	// ANALYZING
	s.setState(StateAnalyzing)
	picks, total, skip := s.analyze(ctx, cfg, log)
	report.Candidates = total
	report.Picks = make([]model.Recommendation, 0, len(picks))
	for _, p := range picks {
		report.Picks = append(report.Picks, p.rec)
	}
	if skip != "" {
		report.Skipped = skip
		s.markToMarket(ctx, report.Mode, log)
		return report, nil
	}

	// EXECUTING
	s.setState(StateExecuting)
	var attempts []model.TransactionLog
	attempts, report.Cancelled = s.execute(ctx, cfg, report, picks, log)

	// SETTLING runs whatever happened above and is not cancellable.
	s.setState(StateSettling)
	report.Orders, report.Deployed = s.settle(context.WithoutCancel(ctx), attempts, log)
	s.markToMarket(ctx, report.Mode, log)

	return report, nil
}

// analyze scores the universe concurrently and returns the BUY picks best first.
func (s *Scheduler) analyze(ctx context.Context, cfg Config, log *logrus.Entry) ([]candidate, int, string) {
	if !s.analyzer.Available(ctx) {
		log.Warn("analysis engine unavailable, skipping deployment this cycle")
		return nil, 0, SkipAnalysisUnavailable
	}

	universe, err := s.universe.Universe(ctx, cfg.StockUniverseInitialSize)
	if err != nil {
		log.WithError(err).Error("failed to load universe")
		return nil, 0, "universe unavailable"
	}

	limit := cfg.AnalysisConcurrency
	if limit <= 0 {
		limit = 1
	}

	var (
		mu    sync.Mutex
		picks []candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, stock := range universe {
		stock := stock
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			rec, err := s.analyzer.Analyze(gctx, stock.Symbol, stock.Fundamentals)
			if err != nil {
				// skipped for this cycle, never retried within it
				log.WithError(err).WithField("symbol", stock.Symbol).Warn("candidate skipped")
				return nil
			}
			if rec.Recommendation != model.RecommendationBuy {
				return nil
			}
			mu.Lock()
			picks = append(picks, candidate{rec: rec, stock: stock})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(picks, func(i, j int) bool {
		if picks[i].rec.Score != picks[j].rec.Score {
			return picks[i].rec.Score > picks[j].rec.Score
		}
		return picks[i].rec.Symbol < picks[j].rec.Symbol
	})

	log.WithFields(logrus.Fields{
		"universe": len(universe),
		"buys":     len(picks),
	}).Info("analysis complete")

	if len(picks) == 0 {
		return picks, len(universe), SkipNoCandidates
	}
	return picks, len(universe), ""
}

// execute tries each pick once and commits at most MaxOrdersPerCycle orders, splitting what
// is left evenly over the slots still open. It only stops early between candidates.
func (s *Scheduler) execute(
	ctx context.Context,
	cfg Config,
	report Report,
	picks []candidate,
	log *logrus.Entry,
) ([]model.TransactionLog, bool) {
	maxOrders := cfg.MaxOrdersPerCycle
	if maxOrders <= 0 {
		maxOrders = 1
	}

	remaining := report.Available
	var attempts []model.TransactionLog
	// failed attempts do not take a slot
	committed := 0

	for _, pick := range picks {
		if ctx.Err() != nil {
			log.Warn("cycle cancelled between candidates")
			return attempts, true
		}
		if committed >= maxOrders || remaining.LessThan(cfg.MinOrderAmount) {
			break
		}

		symbol := pick.rec.Symbol
		clog := log.WithField("symbol", symbol)

		if s.ledger.IsHalted(report.Mode, symbol) {
			clog.Warn("symbol halted, not trading it")
			continue
		}

		price, err := s.quotes.LastPrice(ctx, symbol)
		if err != nil || !price.IsPositive() {
			clog.WithError(err).Warn("no reference price, candidate skipped")
			continue
		}

		slots := decimal.NewFromInt(int64(maxOrders - committed))
		notional := remaining.Div(slots).RoundDown(2)
		qty := notional.Div(price).RoundDown(cfg.QuantityPrecision)
		if !qty.IsPositive() {
			clog.WithFields(logrus.Fields{
				"notional": notional.String(),
				"price":    price.String(),
			}).Warn("order below one quantity step, candidate skipped")
			continue
		}
		notional = qty.Mul(price)

		req := bridge.OrderRequest{
			Symbol:         symbol,
			Quantity:       qty,
			Notional:       notional,
			ReferencePrice: decimal.NewNullDecimal(price),
		}
		entry := s.place(ctx, report, req, clog)
		attempts = append(attempts, entry)

		switch {
		case entry.Outcome == model.OrderStatusFilled:
			committed++
			remaining = remaining.Sub(entry.FilledNotional())
		case entry.AwaitingReconciliation():
			committed++
			remaining = remaining.Sub(entry.Notional)
		}
	}
	return attempts, false
}

// place calls the bridge once and turns whatever comes back into a log entry.
func (s *Scheduler) place(ctx context.Context, report Report, req bridge.OrderRequest, log *logrus.Entry) (entry model.TransactionLog) {
	entry = model.TransactionLog{
		CycleID:  report.ID,
		Mode:     report.Mode,
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
		Price:    req.ReferencePrice,
		Notional: req.Notional,
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("%+v", r)).Error("order placement panicked")
			entry.Outcome = model.OrderStatusError
			entry.ErrorKind = model.ErrorKindInternal
			entry.Message = fmt.Sprintf("panic: %v", r)
		}
		entry.ExecutedAt = s.clock.Now().UTC()
	}()

	// an order in flight is never cut short by shutdown; the bridge bounds it with its own timeout
	result, err := s.executor.Execute(context.WithoutCancel(ctx), req, report.Mode)
	if err != nil {
		entry.Outcome = model.OrderStatusError
		entry.Message = err.Error()
		if kind, ok := bridge.KindOf(err); ok {
			entry.ErrorKind = string(kind)
		} else {
			entry.ErrorKind = model.ErrorKindInternal
		}
		log.WithError(err).WithField("kind", entry.ErrorKind).Warn("order failed")
		return entry
	}

	entry.Outcome = result.Status
	entry.Message = result.Message
	if result.OrderID != nil {
		entry.BrokerOrderID = *result.OrderID
	}
	if result.Status == model.OrderStatusFilled {
		entry.FilledQuantity = result.FilledQuantity
		entry.FilledPrice = result.FilledPrice
	}
	log.WithFields(logrus.Fields{
		"status":  result.Status,
		"message": result.Message,
	}).Info("order placed")
	return entry
}

// settle appends every attempt and applies the fills.
func (s *Scheduler) settle(ctx context.Context, attempts []model.TransactionLog, log *logrus.Entry) ([]model.TransactionLog, decimal.Decimal) {
	deployed := decimal.Zero
	settled := make([]model.TransactionLog, 0, len(attempts))

	for i := range attempts {
		entry := attempts[i]
		err := s.ledger.Settle(ctx, &entry)
		switch {
		case err == nil:
			deployed = deployed.Add(entry.FilledNotional())
		case ledger.IsViolation(err):
			log.WithError(err).WithField("symbol", entry.Symbol).Error("fill rejected by ledger")
		default:
			log.WithError(err).WithField("symbol", entry.Symbol).Error("failed to settle order")
		}
		settled = append(settled, entry)
	}
	return settled, deployed
}

// markToMarket refreshes current prices of held positions. Quote failures leave the old price.
func (s *Scheduler) markToMarket(ctx context.Context, m model.TradingMode, log *logrus.Entry) {
	for _, p := range s.ledger.Positions(m) {
		if ctx.Err() != nil {
			return
		}
		price, err := s.quotes.LastPrice(ctx, p.Symbol)
		if err != nil {
			log.WithError(err).WithField("symbol", p.Symbol).Debug("no quote for mark to market")
			continue
		}
		if err := s.ledger.UpdatePrice(ctx, m, p.Symbol, price); err != nil && !errors.Is(err, ledger.ErrInvariantViolation) {
			log.WithError(err).WithField("symbol", p.Symbol).Warn("failed to mark position")
		}
	}
}
