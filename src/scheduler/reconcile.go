package scheduler

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"valueinvestor/src/model"
)

// reconcile settles live attempts whose broker outcome was unknown, by comparing the broker's
// position with the ledger's. It returns how many entries were resolved.
func (s *Scheduler) reconcile(ctx context.Context, cycleID string, log *logrus.Entry) (int, error) {
	open, err := s.journal.Unresolved(ctx, model.TradingModeLive)
	if err != nil {
		return 0, fmt.Errorf("list unresolved entries: %w", err)
	}

	resolved := 0
	for _, pending := range open {
		if ctx.Err() != nil {
			break
		}
		rlog := log.WithFields(logrus.Fields{
			"symbol":     pending.Symbol,
			"reconciles": pending.ID,
		})

		broker, err := s.executor.QueryPosition(ctx, pending.Symbol)
		if err != nil {
			rlog.WithError(err).Warn("broker position unavailable, will retry next cycle")
			continue
		}

		held, _ := s.ledger.Position(model.TradingModeLive, pending.Symbol)
		ledgerQty := decimal.Zero
		if held.Quantity.Valid {
			ledgerQty = held.Quantity.Decimal
		}
		delta := broker.Quantity.Sub(ledgerQty)

		reconcilesID := pending.ID
		entry := model.TransactionLog{
			CycleID:       cycleID,
			Mode:          model.TradingModeLive,
			Symbol:        pending.Symbol,
			Quantity:      pending.Quantity,
			Price:         pending.Price,
			Notional:      pending.Notional,
			BrokerOrderID: pending.BrokerOrderID,
			ReconcilesID:  &reconcilesID,
			ExecutedAt:    s.clock.Now().UTC(),
		}

		switch {
		case delta.IsPositive():
			entry.Outcome = model.OrderStatusFilled
			entry.FilledQuantity = decimal.NewNullDecimal(delta)
			entry.FilledPrice = impliedFillPrice(held, broker.Quantity, broker.AveragePrice, delta, pending.Price)
			entry.Message = "reconciled: broker position grew"
		case delta.IsNegative():
			entry.Outcome = model.OrderStatusRejected
			entry.Message = fmt.Sprintf("reconciled: broker holds %s, ledger holds %s", broker.Quantity, ledgerQty)
			reason := "broker holds less than the ledger"
			if err := s.ledger.Halt(context.WithoutCancel(ctx), model.TradingModeLive, pending.Symbol, reason); err != nil {
				rlog.WithError(err).Error("failed to halt symbol")
			}
		default:
			entry.Outcome = model.OrderStatusRejected
			entry.Message = "reconciled: broker shows no fill"
		}

		if err := s.ledger.Settle(context.WithoutCancel(ctx), &entry); err != nil {
			rlog.WithError(err).Error("failed to settle reconciliation entry")
			continue
		}
		resolved++
		rlog.WithField("outcome", entry.Outcome).Info("unresolved order reconciled")
	}
	return resolved, nil
}

// impliedFillPrice backs the fill price out of the broker's average price. When that is not
// possible the reference price of the original order is used.
func impliedFillPrice(
	held model.Position,
	brokerQty decimal.Decimal,
	brokerAvg decimal.NullDecimal,
	delta decimal.Decimal,
	reference decimal.NullDecimal,
) decimal.NullDecimal {
	if brokerAvg.Valid {
		cost := brokerQty.Mul(brokerAvg.Decimal)
		if held.Quantity.Valid && held.AveragePrice.Valid {
			cost = cost.Sub(held.Quantity.Decimal.Mul(held.AveragePrice.Decimal))
		}
		price := cost.Div(delta)
		if price.IsPositive() {
			return decimal.NewNullDecimal(price.Round(averagePricePlaces))
		}
	}
	return reference
}

const averagePricePlaces = 10
