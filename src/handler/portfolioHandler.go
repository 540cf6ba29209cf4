package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"

	"valueinvestor/src/model"
)

type portfolioReader interface {
	Positions(mode model.TradingMode) []model.Position
	Summary(mode model.TradingMode) model.PortfolioSummary
}

// ModeFunc returns the mode reads default to, normally the configured trading mode.
type ModeFunc func() model.TradingMode

// PositionsHandler lists the positions of one book. Before the ledger is loaded the body is
// null rather than an empty list.
func PositionsHandler(ledger portfolioReader, defaultMode ModeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := modeFromRequest(w, r, defaultMode)
		if !ok {
			return
		}

		var views []model.PositionView
		if positions := ledger.Positions(mode); positions != nil {
			views = make([]model.PositionView, 0, len(positions))
			for _, p := range positions {
				views = append(views, p.View())
			}
		}
		writeJSON(w, views)
	}
}

func PortfolioSummaryHandler(ledger portfolioReader, defaultMode ModeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := modeFromRequest(w, r, defaultMode)
		if !ok {
			return
		}
		writeJSON(w, ledger.Summary(mode))
	}
}

// modeFromRequest reads ?mode=. Reads never fall back silently: an unknown value is a 400.
func modeFromRequest(w http.ResponseWriter, r *http.Request, defaultMode ModeFunc) (model.TradingMode, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("mode"))
	if raw == "" {
		return defaultMode(), true
	}

	mode := model.TradingMode(strings.ToUpper(raw))
	if !mode.Valid() {
		http.Error(w, "invalid mode", http.StatusBadRequest)
		return "", false
	}
	return mode, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
