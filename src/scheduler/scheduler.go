package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"valueinvestor/src/ledger"
)

// ErrCycleInProgress is returned when a cycle is requested while another one runs.
var ErrCycleInProgress = errors.New("cycle already in progress")

var ErrAlreadyStarted = errors.New("scheduler already started")

// Deps are the collaborators of a Scheduler.
type Deps struct {
	Ledger   *ledger.Ledger
	Analyzer Analyzer
	Executor Executor
	Universe Universe
	Journal  Journal
	Quotes   Quotes

	// Clock drives the recurring tick. Defaults to the real clock.
	Clock clockwork.Clock
	// LoadConfig returns the snapshot for the next cycle. Defaults to LoadConfig.
	LoadConfig func() (Config, error)
	Logger     *logrus.Entry
}

// Scheduler owns the recurring allocation cycle.
type Scheduler struct {
	ledger     *ledger.Ledger
	analyzer   Analyzer
	executor   Executor
	universe   Universe
	journal    Journal
	quotes     Quotes
	clock      clockwork.Clock
	loadConfig func() (Config, error)
	logger     *logrus.Entry

	running atomic.Bool

	mu         sync.RWMutex
	state      State
	lastReport *Report
	cancel     context.CancelFunc
	done       chan struct{}
}

func New(deps Deps) *Scheduler {
	s := &Scheduler{
		ledger:     deps.Ledger,
		analyzer:   deps.Analyzer,
		executor:   deps.Executor,
		universe:   deps.Universe,
		journal:    deps.Journal,
		quotes:     deps.Quotes,
		clock:      deps.Clock,
		loadConfig: deps.LoadConfig,
		logger:     deps.Logger,
		state:      StateIdle,
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.loadConfig == nil {
		s.loadConfig = LoadConfig
	}
	if s.logger == nil {
		s.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s.logger = s.logger.WithField("component", "scheduler")
	return s
}

// Start runs a cycle every period until ctx is done or Stop is called. Ticks that arrive
// while a cycle is running are dropped, and ticks missed while the process was down are not
// replayed.
func (s *Scheduler) Start(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return errors.New("scheduler period must be positive")
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	ticker := s.clock.NewTicker(period)
	s.logger.WithField("period", period.String()).Info("scheduler started")

	go func() {
		defer close(done)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				s.logger.Info("scheduler stopped")
				return
			case <-ticker.Chan():
				s.logger.Info("scheduler tick")
				s.tick(loopCtx)
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for it. A running cycle stops between candidates and still
// settles what it already placed.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// RunOnce loads a fresh configuration snapshot and runs one cycle now.
func (s *Scheduler) RunOnce(ctx context.Context) (Report, error) {
	cfg, err := s.loadConfig()
	if err != nil {
		return Report{}, err
	}
	return s.RunCycle(ctx, cfg)
}

func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("cycle panicked")
		}
	}()

	report, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Warn("previous cycle still running, tick skipped")
	case err != nil:
		s.logger.WithError(err).WithField("cycle", report.ID).Error("cycle failed")
	}
}

func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.logger.WithField("state", state).Debug("scheduler state")
}

// LastReport returns the report of the most recent finished cycle.
func (s *Scheduler) LastReport() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastReport == nil {
		return Report{}, false
	}
	return *s.lastReport, true
}

func (s *Scheduler) setLastReport(r Report) {
	s.mu.Lock()
	s.lastReport = &r
	s.mu.Unlock()
}
