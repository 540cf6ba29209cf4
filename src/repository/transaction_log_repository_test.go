package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"valueinvestor/src/model"
)

func logEntry(mode model.TradingMode, symbol string, outcome model.OrderStatus, at time.Time) *model.TransactionLog {
	return &model.TransactionLog{
		CycleID:    "c1",
		Mode:       mode,
		Symbol:     symbol,
		Quantity:   d("1"),
		Notional:   d("100"),
		Outcome:    outcome,
		ExecutedAt: at,
	}
}

func TestTransactionLogRepositoryQueries(t *testing.T) {
	db := newTestDB(t)
	repo := (&TransactionLogRepository{}).WithDB(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

	fill := logEntry(model.TradingModeSimulation, "KO", model.OrderStatusFilled, base)
	fill.FilledQuantity = nd("1")
	fill.FilledPrice = nd("100")
	require.NoError(t, repo.Append(ctx, fill))
	require.NotZero(t, fill.ID)

	require.NoError(t, repo.Append(ctx, logEntry(model.TradingModeSimulation, "PEP", model.OrderStatusRejected, base.Add(time.Hour))))
	require.NoError(t, repo.Append(ctx, logEntry(model.TradingModeSimulation, "OLD", model.OrderStatusFilled, base.AddDate(0, -1, 0))))
	require.NoError(t, repo.Append(ctx, logEntry(model.TradingModeLive, "KO", model.OrderStatusFilled, base)))

	since, err := repo.ListSince(ctx, model.TradingModeSimulation, base)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, "KO", since[0].Symbol)
	assert.Equal(t, "PEP", since[1].Symbol)

	filled, err := repo.ListFilled(ctx, model.TradingModeSimulation)
	require.NoError(t, err)
	require.Len(t, filled, 2)
	assert.True(t, filled[0].FilledNotional().Equal(decimal.NewFromInt(100)))

	latest, err := repo.Latest(ctx, model.TradingModeSimulation, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, "PEP", latest[0].Symbol)
}

func TestTransactionLogRepositoryUnresolved(t *testing.T) {
	db := newTestDB(t)
	repo := (&TransactionLogRepository{}).WithDB(db)
	ctx := context.Background()
	now := time.Now().UTC()

	timedOut := logEntry(model.TradingModeLive, "KO", model.OrderStatusError, now)
	timedOut.ErrorKind = model.ErrorKindExecutionTimeout
	require.NoError(t, repo.Append(ctx, timedOut))

	pending := logEntry(model.TradingModeLive, "PEP", model.OrderStatusPending, now)
	require.NoError(t, repo.Append(ctx, pending))

	unavailable := logEntry(model.TradingModeLive, "MSFT", model.OrderStatusError, now)
	unavailable.ErrorKind = model.ErrorKindExecutionUnavailable
	require.NoError(t, repo.Append(ctx, unavailable))

	open, err := repo.Unresolved(ctx, model.TradingModeLive)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, timedOut.ID, open[0].ID)
	assert.Equal(t, pending.ID, open[1].ID)

	closing := logEntry(model.TradingModeLive, "KO", model.OrderStatusFilled, now)
	closing.ReconcilesID = &timedOut.ID
	require.NoError(t, repo.Append(ctx, closing))

	open, err = repo.Unresolved(ctx, model.TradingModeLive)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, pending.ID, open[0].ID)
}

func TestTransactionLogEntriesAreImmutable(t *testing.T) {
	db := newTestDB(t)
	repo := (&TransactionLogRepository{}).WithDB(db)
	ctx := context.Background()

	entry := logEntry(model.TradingModeSimulation, "KO", model.OrderStatusRejected, time.Now().UTC())
	require.NoError(t, repo.Append(ctx, entry))

	entry.Message = "rewritten"
	assert.ErrorIs(t, db.Save(entry).Error, model.ErrImmutableLogEntry)
	assert.ErrorIs(t, db.Delete(entry).Error, model.ErrImmutableLogEntry)
}
