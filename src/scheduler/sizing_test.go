package scheduler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"valueinvestor/src/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func filledAt(at time.Time, notional string) model.TransactionLog {
	return model.TransactionLog{
		Mode:           model.TradingModeSimulation,
		Symbol:         "KO",
		Quantity:       d("1"),
		Notional:       d(notional),
		FilledQuantity: nd("1"),
		FilledPrice:    nd(notional),
		Outcome:        model.OrderStatusFilled,
		ExecutedAt:     at,
	}
}

func TestAvailableCapitalStartFromZeroIsNotCumulative(t *testing.T) {
	budget := Budget{Monthly: d("16000"), Weekly: d("1600"), StartFromZero: true}
	week5 := time.Date(2026, time.March, 30, 10, 0, 0, 0, time.UTC)

	available := AvailableCapital(budget, week5, DeployedCapital(nil, week5))
	assert.True(t, available.Equal(d("1600")), available.String())
}

func TestAvailableCapitalAccumulatesUnspent(t *testing.T) {
	budget := Budget{Monthly: d("16000"), Weekly: d("1600"), StartFromZero: false}
	entries := []model.TransactionLog{
		filledAt(time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC), "1600"),
		filledAt(time.Date(2026, time.March, 9, 15, 0, 0, 0, time.UTC), "1600"),
		filledAt(time.Date(2026, time.March, 16, 15, 0, 0, 0, time.UTC), "800"),
	}
	week4 := time.Date(2026, time.March, 23, 10, 0, 0, 0, time.UTC)

	available := AvailableCapital(budget, week4, DeployedCapital(entries, week4))
	assert.True(t, available.Equal(d("2400")), available.String())
}

func TestAvailableCapitalIsIdempotent(t *testing.T) {
	budget := Budget{Monthly: d("16000"), Weekly: d("1600"), StartFromZero: false}
	now := time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)
	entries := []model.TransactionLog{filledAt(time.Date(2026, time.March, 9, 15, 0, 0, 0, time.UTC), "500")}

	first := AvailableCapital(budget, now, DeployedCapital(entries, now))
	second := AvailableCapital(budget, now, DeployedCapital(entries, now))
	assert.True(t, first.Equal(second))
	assert.True(t, first.Equal(d("2700")), first.String())
}

func TestAvailableCapitalCaps(t *testing.T) {
	now := time.Date(2026, time.March, 30, 10, 0, 0, 0, time.UTC)

	// the monthly amount bounds the accumulated targets
	tight := Budget{Monthly: d("5000"), Weekly: d("1600"), StartFromZero: false}
	assert.True(t, AvailableCapital(tight, now, Deployments{}).Equal(d("5000")))

	// overspent periods never go negative
	spent := Budget{Monthly: d("16000"), Weekly: d("1600"), StartFromZero: true}
	assert.True(t, AvailableCapital(spent, now, Deployments{ThisMonth: d("2000"), ThisPeriod: d("2000")}).IsZero())

	// the monthly amount bounds a single period
	small := Budget{Monthly: d("1000"), Weekly: d("1600"), StartFromZero: true}
	assert.True(t, AvailableCapital(small, now, Deployments{ThisMonth: d("400"), ThisPeriod: decimal.Zero}).Equal(d("600")))
}

func TestDeployedCapitalBuckets(t *testing.T) {
	now := time.Date(2026, time.March, 17, 10, 0, 0, 0, time.UTC)

	timedOut := model.TransactionLog{
		ID: 7, Mode: model.TradingModeLive, Symbol: "PEP", Notional: d("300"),
		Outcome: model.OrderStatusError, ErrorKind: model.ErrorKindExecutionTimeout,
		ExecutedAt: time.Date(2026, time.March, 16, 15, 0, 0, 0, time.UTC),
	}
	unavailable := model.TransactionLog{
		ID: 8, Mode: model.TradingModeLive, Symbol: "MSFT", Notional: d("900"),
		Outcome: model.OrderStatusError, ErrorKind: model.ErrorKindExecutionUnavailable,
		ExecutedAt: time.Date(2026, time.March, 16, 15, 0, 0, 0, time.UTC),
	}
	entries := []model.TransactionLog{
		filledAt(time.Date(2026, time.February, 27, 15, 0, 0, 0, time.UTC), "1000"),
		filledAt(time.Date(2026, time.March, 3, 15, 0, 0, 0, time.UTC), "200"),
		timedOut,
		unavailable,
	}

	got := DeployedCapital(entries, now)
	assert.True(t, got.ThisMonth.Equal(d("500")), got.ThisMonth.String())
	assert.True(t, got.ThisPeriod.Equal(d("300")), got.ThisPeriod.String())

	// once reconciled the requested notional no longer counts
	closing := model.TransactionLog{
		ID: 9, Mode: model.TradingModeLive, Symbol: "PEP", Outcome: model.OrderStatusRejected,
		ReconcilesID: &timedOut.ID, ExecutedAt: time.Date(2026, time.March, 17, 9, 0, 0, 0, time.UTC),
	}
	got = DeployedCapital(append(entries, closing), now)
	assert.True(t, got.ThisMonth.Equal(d("200")), got.ThisMonth.String())
	assert.True(t, got.ThisPeriod.IsZero())
}
