package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"valueinvestor/src/analysis"
	"valueinvestor/src/bridge"
	"valueinvestor/src/database"
	"valueinvestor/src/ledger"
	"valueinvestor/src/model"
	"valueinvestor/src/repository"
)

type fakeAnalyzer struct {
	available bool
	recs      map[string]model.Recommendation
	calls     atomic.Int32
}

func (f *fakeAnalyzer) Analyze(_ context.Context, symbol, _ string) (model.Recommendation, error) {
	f.calls.Add(1)
	rec, ok := f.recs[symbol]
	if !ok {
		return model.Recommendation{}, fmt.Errorf("%w: %s", analysis.ErrAnalysisParse, symbol)
	}
	return rec, nil
}

func (f *fakeAnalyzer) Available(context.Context) bool { return f.available }

type fakeUniverse []model.StockFundamental

func (u fakeUniverse) Universe(_ context.Context, limit int) ([]model.StockFundamental, error) {
	if limit < len(u) {
		return u[:limit], nil
	}
	return u, nil
}

type fakeQuotes map[string]string

func (q fakeQuotes) LastPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := q[symbol]
	if !ok {
		return decimal.Zero, errors.New("no quote")
	}
	return d(price), nil
}

type fakeExecutor struct {
	mu        sync.Mutex
	errs      map[string]error
	positions map[string]bridge.BrokerPosition
	requests  []bridge.OrderRequest
	onExecute func()
}

func (f *fakeExecutor) Execute(_ context.Context, req bridge.OrderRequest, _ model.TradingMode) (model.OrderResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.errs[req.Symbol]
	hook := f.onExecute
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return model.OrderResult{}, err
	}
	id := "live-" + req.Symbol
	return model.OrderResult{
		Success:        true,
		OrderID:        &id,
		Status:         model.OrderStatusFilled,
		FilledQuantity: decimal.NewNullDecimal(req.Quantity),
		FilledPrice:    req.ReferencePrice,
	}, nil
}

func (f *fakeExecutor) QueryPosition(_ context.Context, symbol string) (bridge.BrokerPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[symbol]
	if !ok {
		return bridge.BrokerPosition{Symbol: symbol, Quantity: decimal.Zero}, nil
	}
	return p, nil
}

type harness struct {
	db       *gorm.DB
	ledger   *ledger.Ledger
	logs     *repository.TransactionLogRepository
	analyzer *fakeAnalyzer
	executor Executor
	clock    clockwork.FakeClock
	cfg      Config
}

var cycleStart = time.Date(2026, time.March, 2, 14, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db, database.Config{InitialSimulationCash: d("10000")}))

	nullLogger, _ := logrustest.NewNullLogger()
	l := ledger.New(db, logrus.NewEntry(nullLogger))
	require.NoError(t, l.Load(context.Background()))

	clock := clockwork.NewFakeClockAt(cycleStart)
	return &harness{
		db:     db,
		ledger: l,
		logs:   (&repository.TransactionLogRepository{}).WithDB(db),
		analyzer: &fakeAnalyzer{
			available: true,
			recs: map[string]model.Recommendation{
				"KO":  {Symbol: "KO", Recommendation: model.RecommendationBuy, Score: 8},
				"PEP": {Symbol: "PEP", Recommendation: model.RecommendationBuy, Score: 8},
				"JNJ": {Symbol: "JNJ", Recommendation: model.RecommendationHold, Score: 9},
			},
		},
		executor: bridge.New(bridge.Config{}, logrus.NewEntry(nullLogger)),
		clock:    clock,
		cfg: Config{
			MonthlyInvestmentAmount:  d("16000"),
			TargetWeeklyAmount:       d("1600"),
			TradingMode:              "paper",
			StartFromZero:            true,
			StockUniverseInitialSize: 10,
			MaxOrdersPerCycle:        2,
			QuantityPrecision:        6,
			MinOrderAmount:           d("1"),
			AnalysisConcurrency:      3,
			Timezone:                 "UTC",
		},
	}
}

func (h *harness) scheduler() *Scheduler {
	nullLogger, _ := logrustest.NewNullLogger()
	return New(Deps{
		Ledger:   h.ledger,
		Analyzer: h.analyzer,
		Executor: h.executor,
		Universe: fakeUniverse{
			{Symbol: "KO", Rank: 1}, {Symbol: "PEP", Rank: 2}, {Symbol: "JNJ", Rank: 3}, {Symbol: "XOM", Rank: 4},
		},
		Journal:    h.logs,
		Quotes:     fakeQuotes{"KO": "60", "PEP": "160", "JNJ": "150", "XOM": "110"},
		Clock:      h.clock,
		LoadConfig: func() (Config, error) { return h.cfg, nil },
		Logger:     logrus.NewEntry(nullLogger),
	})
}

func (h *harness) logCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&model.TransactionLog{}).Count(&n).Error)
	return n
}

func TestRunCycleSimulationDeploysTheWeeklyTarget(t *testing.T) {
	h := newHarness(t)
	s := h.scheduler()

	report, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)

	assert.Equal(t, model.TradingModeSimulation, report.Mode)
	assert.False(t, report.ModeFallback)
	assert.Equal(t, 4, report.Candidates)
	require.Len(t, report.Picks, 2)
	assert.Equal(t, "KO", report.Picks[0].Symbol)
	assert.Equal(t, "PEP", report.Picks[1].Symbol)

	require.Len(t, report.Orders, 2)
	for _, o := range report.Orders {
		assert.Equal(t, model.OrderStatusFilled, o.Outcome)
		assert.NotZero(t, o.ID)
	}
	assert.True(t, report.Deployed.Equal(d("1599.99998")), report.Deployed.String())

	ko, ok := h.ledger.Position(model.TradingModeSimulation, "KO")
	require.True(t, ok)
	assert.True(t, ko.Quantity.Decimal.Equal(d("13.333333")))
	pep, ok := h.ledger.Position(model.TradingModeSimulation, "PEP")
	require.True(t, ok)
	assert.True(t, pep.Quantity.Decimal.Equal(d("5")))
	assert.True(t, h.ledger.Cash(model.TradingModeSimulation).Equal(d("8400.00002")))
	assert.Equal(t, StateIdle, s.State())

	// a second cycle in the same period finds nothing left to deploy
	again, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)
	assert.Equal(t, SkipNoCapital, again.Skipped)
	assert.Empty(t, again.Orders)
	assert.Equal(t, int64(2), h.logCount(t))

	last, ok := s.LastReport()
	require.True(t, ok)
	assert.Equal(t, again.ID, last.ID)
}

func TestRunCycleUnreachableAdapterLeavesLedgerUnchanged(t *testing.T) {
	h := newHarness(t)
	nullLogger, _ := logrustest.NewNullLogger()
	h.executor = bridge.New(bridge.Config{AdapterPath: "/nonexistent/broker-adapter", Timeout: time.Second}, logrus.NewEntry(nullLogger))
	h.cfg.TradingMode = "LIVE"
	h.cfg.MaxOrdersPerCycle = 1
	s := h.scheduler()

	report, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)

	// every pick is tried once since none of them takes the slot
	require.Len(t, report.Orders, 2)
	for _, entry := range report.Orders {
		assert.Equal(t, model.OrderStatusError, entry.Outcome)
		assert.Equal(t, model.ErrorKindExecutionUnavailable, entry.ErrorKind)
		assert.Equal(t, model.TradingModeLive, entry.Mode)
	}
	assert.True(t, report.Deployed.IsZero())

	assert.Empty(t, h.ledger.Positions(model.TradingModeLive))
	assert.True(t, h.ledger.Cash(model.TradingModeLive).IsZero())
	assert.Equal(t, int64(2), h.logCount(t))
}

func TestRunCycleFailedOrderLeavesItsSlotToTheNextPick(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxOrdersPerCycle = 1
	exec := &fakeExecutor{errs: map[string]error{
		"KO": &bridge.Error{Kind: bridge.ExecutionUnavailable, Symbol: "KO"},
	}}
	h.executor = exec
	s := h.scheduler()

	report, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)

	require.Len(t, report.Orders, 2)
	assert.Equal(t, "KO", report.Orders[0].Symbol)
	assert.Equal(t, model.OrderStatusError, report.Orders[0].Outcome)
	assert.Equal(t, "PEP", report.Orders[1].Symbol)
	assert.Equal(t, model.OrderStatusFilled, report.Orders[1].Outcome)
	assert.Len(t, exec.requests, 2)

	// the whole remaining target goes to PEP: 1600 / 160 = 10
	pep, ok := h.ledger.Position(model.TradingModeSimulation, "PEP")
	require.True(t, ok)
	assert.True(t, pep.Quantity.Decimal.Equal(d("10")), pep.Quantity.Decimal.String())
	assert.True(t, report.Deployed.Equal(d("1600")), report.Deployed.String())
	_, ok = h.ledger.Position(model.TradingModeSimulation, "KO")
	assert.False(t, ok)
}

func TestRunCycleSkipsWhenAnalysisUnavailable(t *testing.T) {
	h := newHarness(t)
	h.analyzer.available = false
	s := h.scheduler()

	report, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)
	assert.Equal(t, SkipAnalysisUnavailable, report.Skipped)
	assert.Empty(t, report.Orders)
	assert.Equal(t, int32(0), h.analyzer.calls.Load())
	assert.Equal(t, int64(0), h.logCount(t))
}

func TestRunCycleUnknownModeFallsBackToSimulation(t *testing.T) {
	h := newHarness(t)
	h.cfg.TradingMode = "LIEV"
	exec := &fakeExecutor{}
	h.executor = exec
	s := h.scheduler()

	report, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)
	assert.Equal(t, model.TradingModeSimulation, report.Mode)
	assert.True(t, report.ModeFallback)
	assert.Equal(t, "LIEV", report.Configured)
	assert.Empty(t, h.ledger.Positions(model.TradingModeLive))
	assert.Len(t, h.ledger.Positions(model.TradingModeSimulation), 2)
}

func TestRunCycleSkipsHaltedSymbols(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ledger.Halt(context.Background(), model.TradingModeSimulation, "KO", "operator check"))
	s := h.scheduler()

	report, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)
	require.Len(t, report.Orders, 1)
	assert.Equal(t, "PEP", report.Orders[0].Symbol)
	// the open slots split what is left: 1600 / 2 = 800
	assert.True(t, report.Orders[0].Notional.Equal(d("800")), report.Orders[0].Notional.String())
}

func TestRunCycleCancelsOnlyBetweenCandidates(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := &fakeExecutor{onExecute: cancel}
	h.executor = exec
	s := h.scheduler()

	report, err := s.RunCycle(ctx, h.cfg)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	require.Len(t, report.Orders, 1)
	assert.Equal(t, model.OrderStatusFilled, report.Orders[0].Outcome)
	assert.Len(t, exec.requests, 1)

	// the order that was in flight is settled in full
	_, ok := h.ledger.Position(model.TradingModeSimulation, "KO")
	assert.True(t, ok)
	assert.Equal(t, int64(1), h.logCount(t))
}

func TestTimedOutOrderIsReconciledNextCycle(t *testing.T) {
	h := newHarness(t)
	h.cfg.TradingMode = "live"
	h.cfg.MaxOrdersPerCycle = 1
	exec := &fakeExecutor{errs: map[string]error{
		"KO": &bridge.Error{Kind: bridge.ExecutionTimeout, Symbol: "KO"},
	}}
	h.executor = exec
	s := h.scheduler()

	first, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)
	require.Len(t, first.Orders, 1)
	timedOut := first.Orders[0]
	assert.Equal(t, model.ErrorKindExecutionTimeout, timedOut.ErrorKind)
	assert.True(t, timedOut.AwaitingReconciliation())
	assert.Empty(t, h.ledger.Positions(model.TradingModeLive))

	// the broker did fill it
	exec.positions = map[string]bridge.BrokerPosition{
		"KO": {Symbol: "KO", Quantity: d("10"), AveragePrice: nd("61")},
	}
	h.analyzer.available = false
	h.clock.Advance(time.Hour)

	second, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Reconciled)

	ko, ok := h.ledger.Position(model.TradingModeLive, "KO")
	require.True(t, ok)
	assert.True(t, ko.Quantity.Decimal.Equal(d("10")))
	assert.True(t, ko.AveragePrice.Decimal.Equal(d("61")))

	open, err := h.logs.Unresolved(context.Background(), model.TradingModeLive)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestReconcileClosesOrdersTheBrokerNeverFilled(t *testing.T) {
	h := newHarness(t)
	h.cfg.TradingMode = "live"
	h.cfg.MaxOrdersPerCycle = 1
	exec := &fakeExecutor{errs: map[string]error{
		"KO": &bridge.Error{Kind: bridge.ExecutionTimeout, Symbol: "KO"},
	}}
	h.executor = exec
	s := h.scheduler()

	_, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)

	h.analyzer.available = false
	second, err := s.RunCycle(context.Background(), h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Reconciled)
	assert.Empty(t, h.ledger.Positions(model.TradingModeLive))

	// the requested notional no longer holds back capital
	assert.True(t, second.Available.Equal(d("1600")), second.Available.String())
}

func TestRunCycleRejectsOverlap(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	var once sync.Once
	h.executor = &fakeExecutor{onExecute: func() {
		once.Do(func() {
			entered <- struct{}{}
			<-release
		})
	}}
	s := h.scheduler()

	done := make(chan error, 1)
	go func() {
		_, err := s.RunCycle(context.Background(), h.cfg)
		done <- err
	}()

	<-entered
	_, err := s.RunCycle(context.Background(), h.cfg)
	assert.ErrorIs(t, err, ErrCycleInProgress)
	assert.Equal(t, StateExecuting, s.State())

	close(release)
	require.NoError(t, <-done)
}

func TestStartRunsCyclesOnTheClock(t *testing.T) {
	h := newHarness(t)
	var loads atomic.Int32
	s := h.scheduler()
	s.loadConfig = func() (Config, error) {
		loads.Add(1)
		return h.cfg, nil
	}

	require.NoError(t, s.Start(context.Background(), 24*time.Hour))
	assert.ErrorIs(t, s.Start(context.Background(), time.Hour), ErrAlreadyStarted)

	h.clock.BlockUntil(1)
	_, ok := s.LastReport()
	assert.False(t, ok)

	h.clock.Advance(24 * time.Hour)
	assert.Eventually(t, func() bool {
		_, ok := s.LastReport()
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.Equal(t, int32(1), loads.Load())
	assert.Len(t, h.ledger.Positions(model.TradingModeSimulation), 2)
}
