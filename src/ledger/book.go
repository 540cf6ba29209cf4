package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"valueinvestor/src/model"
)

// averagePricePlaces bounds the scale of stored average prices.
const averagePricePlaces = 10

type book struct {
	cash      decimal.Decimal
	positions map[string]model.Position
}

func newBook(cash decimal.Decimal) *book {
	return &book{cash: cash, positions: map[string]model.Position{}}
}

// held returns the positions that carry a quantity, ordered by symbol.
func (b *book) held() []model.Position {
	out := make([]model.Position, 0, len(b.positions))
	for _, p := range b.positions {
		if p.Quantity.Valid {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// checkFill validates the fields a fill needs.
func checkFill(entry model.TransactionLog) error {
	switch {
	case entry.Symbol == "":
		return fmt.Errorf("%w: entry %d has no symbol", ErrInvariantViolation, entry.ID)
	case !entry.Mode.Valid():
		return fmt.Errorf("%w: entry %d has mode %q", ErrInvariantViolation, entry.ID, entry.Mode)
	case !entry.FilledQuantity.Valid || !entry.FilledPrice.Valid:
		return fmt.Errorf("%w: %s fill is missing quantity or price", ErrInvariantViolation, entry.Symbol)
	case !entry.FilledQuantity.Decimal.IsPositive():
		return fmt.Errorf("%w: %s filled quantity %s", ErrInvariantViolation, entry.Symbol, entry.FilledQuantity.Decimal)
	case !entry.FilledPrice.Decimal.IsPositive():
		return fmt.Errorf("%w: %s filled price %s", ErrInvariantViolation, entry.Symbol, entry.FilledPrice.Decimal)
	}
	return nil
}

// fold applies a validated fill to p with a volume weighted average price.
func fold(p model.Position, entry model.TransactionLog) (model.Position, error) {
	qf := entry.FilledQuantity.Decimal
	pf := entry.FilledPrice.Decimal

	q0 := decimal.Zero
	if p.Quantity.Valid {
		q0 = p.Quantity.Decimal
	}
	p0 := decimal.Zero
	if p.AveragePrice.Valid {
		p0 = p.AveragePrice.Decimal
	} else if q0.IsPositive() {
		return p, fmt.Errorf("%w: %s holds %s without an average price", ErrInvariantViolation, p.Symbol, q0)
	}
	if q0.IsNegative() {
		return p, fmt.Errorf("%w: %s holds negative quantity %s", ErrInvariantViolation, p.Symbol, q0)
	}

	qty := q0.Add(qf)
	avg := q0.Mul(p0).Add(qf.Mul(pf)).Div(qty).Round(averagePricePlaces)
	if !avg.IsPositive() {
		return p, fmt.Errorf("%w: %s average price %s", ErrInvariantViolation, p.Symbol, avg)
	}

	p.Mode = entry.Mode
	p.Symbol = entry.Symbol
	p.Quantity = decimal.NewNullDecimal(qty)
	p.AveragePrice = decimal.NewNullDecimal(avg)
	if !p.CurrentPrice.Valid {
		p.CurrentPrice = decimal.NewNullDecimal(pf)
		at := entry.ExecutedAt
		p.PriceUpdatedAt = &at
	}
	return p, nil
}
