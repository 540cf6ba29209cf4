package handler

import (
	"context"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"valueinvestor/src/mode"
	"valueinvestor/src/model"
	"valueinvestor/src/scheduler"
)

const probeTimeout = 5 * time.Second

type brokerProber interface {
	Probe(ctx context.Context, mode model.TradingMode) bool
}

type analysisProber interface {
	Available(ctx context.Context) bool
	ModelAvailable(ctx context.Context) (bool, error)
	Model() string
}

type exceptionLister interface {
	Latest(ctx context.Context, limit int) ([]model.Exception, error)
}

type schedulerView interface {
	State() scheduler.State
	LastReport() (scheduler.Report, bool)
}

// StatusDeps are what the status endpoint reports on. Resolve returns the configured mode.
type StatusDeps struct {
	Resolve    func() mode.Resolution
	Broker     brokerProber
	Analysis   analysisProber
	Scheduler  schedulerView
	// Exceptions is optional.
	Exceptions exceptionLister
}

type StatusResponse struct {
	Mode              model.TradingMode `json:"mode"`
	ConfiguredMode    string            `json:"configuredMode"`
	ModeFallback      bool              `json:"modeFallback"`
	ModeFallbackCount int64             `json:"modeFallbackCount"`
	BrokerReachable   bool              `json:"brokerReachable"`
	AnalysisReachable bool              `json:"analysisReachable"`
	AnalysisModel     string            `json:"analysisModel"`
	ModelAvailable    bool              `json:"modelAvailable"`
	SchedulerState    scheduler.State   `json:"schedulerState"`
	LastCycle         *scheduler.Report `json:"lastCycle"`
	RecentExceptions  []model.Exception `json:"recentExceptions"`
}

const recentExceptionsLimit = 5

// StatusHandler probes the broker adapter and the analysis engine. The probes are advisory
// and never change what the scheduler does.
func StatusHandler(deps StatusDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolution := deps.Resolve()
		resp := StatusResponse{
			Mode:              resolution.Mode,
			ConfiguredMode:    resolution.Raw,
			ModeFallback:      resolution.Fallback,
			ModeFallbackCount: mode.FallbackCount(),
			AnalysisModel:     deps.Analysis.Model(),
			SchedulerState:    deps.Scheduler.State(),
		}
		if report, ok := deps.Scheduler.LastReport(); ok {
			resp.LastCycle = &report
		}

		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		var g errgroup.Group
		g.Go(func() error {
			resp.BrokerReachable = deps.Broker.Probe(ctx, resolution.Mode)
			return nil
		})
		g.Go(func() error {
			resp.AnalysisReachable = deps.Analysis.Available(ctx)
			return nil
		})
		g.Go(func() error {
			present, err := deps.Analysis.ModelAvailable(ctx)
			if err != nil {
				logger.WithError(err).Debug("model listing failed")
			}
			resp.ModelAvailable = present
			return nil
		})
		if deps.Exceptions != nil {
			g.Go(func() error {
				latest, err := deps.Exceptions.Latest(ctx, recentExceptionsLimit)
				if err != nil {
					logger.WithError(err).Warn("failed to list exceptions")
				}
				resp.RecentExceptions = latest
				return nil
			})
		}
		_ = g.Wait()
		if resp.RecentExceptions == nil {
			resp.RecentExceptions = []model.Exception{}
		}

		writeJSON(w, resp)
	}
}
