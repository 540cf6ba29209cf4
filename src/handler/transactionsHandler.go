package handler

import (
	"context"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"valueinvestor/src/model"
	"valueinvestor/src/repository"
)

const maxTransactionsLimit = 500

type transactionLister interface {
	Latest(ctx context.Context, mode model.TradingMode, limit int) ([]model.TransactionLog, error)
}

// TransactionsHandler returns the newest transaction log entries of one book.
// Supports mode and limit (default 50, at most 500).
func TransactionsHandler(repo transactionLister, defaultMode ModeFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, ok := modeFromRequest(w, r, defaultMode)
		if !ok {
			return
		}

		limit := 50
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(parsed, maxTransactionsLimit)
		}

		entries, err := repo.Latest(r.Context(), mode, limit)
		if err != nil {
			logger.WithError(err).WithField("mode", mode).Error("failed to list transactions")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []model.TransactionLog{}
		}
		writeJSON(w, entries)
	}
}

// DefaultTransactionsHandler wires the handler to the production repository implementation.
func DefaultTransactionsHandler(defaultMode ModeFunc) http.HandlerFunc {
	return TransactionsHandler(repository.NewTransactionLogRepository(), defaultMode)
}
