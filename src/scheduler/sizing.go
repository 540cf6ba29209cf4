package scheduler

import (
	"time"

	"github.com/shopspring/decimal"

	"valueinvestor/src/model"
	"valueinvestor/src/utils"
)

// Budget is the part of the configuration that decides how much may be deployed.
type Budget struct {
	Monthly       decimal.Decimal
	Weekly        decimal.Decimal
	StartFromZero bool
}

// Deployments is capital already committed in the current month and period.
type Deployments struct {
	ThisMonth  decimal.Decimal
	ThisPeriod decimal.Decimal
}

// DeployedCapital sums what the log says was committed in the month and period containing
// now. Fills count at their filled notional. Live attempts whose outcome is still unknown count
// at their requested notional until a later entry reconciles them.
func DeployedCapital(entries []model.TransactionLog, now time.Time) Deployments {
	monthStart := utils.MonthStart(now)
	periodStart := utils.PeriodStart(now)

	resolved := map[uint]bool{}
	for _, e := range entries {
		if e.ReconcilesID != nil {
			resolved[*e.ReconcilesID] = true
		}
	}

	out := Deployments{ThisMonth: decimal.Zero, ThisPeriod: decimal.Zero}
	for _, e := range entries {
		at := e.ExecutedAt.In(now.Location())
		if at.Before(monthStart) || at.After(now) {
			continue
		}

		amount := e.FilledNotional()
		if e.AwaitingReconciliation() && !resolved[e.ID] {
			amount = e.Notional
		}
		if amount.IsZero() {
			continue
		}

		out.ThisMonth = out.ThisMonth.Add(amount)
		if !at.Before(periodStart) {
			out.ThisPeriod = out.ThisPeriod.Add(amount)
		}
	}
	return out
}

// AvailableCapital is how much may be deployed at now. It is a pure function of its inputs,
// so sizing the same period twice without a new deployment gives the same answer.
//
// With StartFromZero each period gets the weekly target minus what that period already used;
// otherwise unspent targets accumulate through the month. Either way the month never exceeds
// the monthly amount, and nothing carries into the next month.
func AvailableCapital(b Budget, now time.Time, d Deployments) decimal.Decimal {
	var available decimal.Decimal
	if b.StartFromZero {
		available = b.Weekly.Sub(d.ThisPeriod)
	} else {
		periods := decimal.NewFromInt(int64(utils.WeekOfMonth(now)))
		available = b.Weekly.Mul(periods).Sub(d.ThisMonth)
	}

	monthLeft := b.Monthly.Sub(d.ThisMonth)
	if available.GreaterThan(monthLeft) {
		available = monthLeft
	}
	if available.IsNegative() {
		return decimal.Zero
	}
	return available
}
