package model

import "github.com/shopspring/decimal"

// PortfolioSummary is a snapshot over one book. Positions is nil until the ledger has been
// loaded, which is not the same thing as an empty book.
type PortfolioSummary struct {
	TotalValue     decimal.Decimal     `json:"totalValue"`
	CashBalance    decimal.Decimal     `json:"cashBalance"`
	InvestedAmount decimal.Decimal     `json:"investedAmount"`
	TotalPL        decimal.Decimal     `json:"totalPL"`
	PLPercentage   decimal.NullDecimal `json:"plPercentage"`
	PositionCount  int                 `json:"positionCount"`
	Positions      []PositionView      `json:"positions"`
}

// NewPortfolioSummary derives every summary figure from cash and the canonical positions.
func NewPortfolioSummary(cash decimal.Decimal, positions []Position) PortfolioSummary {
	summary := PortfolioSummary{
		TotalValue:     cash,
		CashBalance:    cash,
		InvestedAmount: decimal.Zero,
		TotalPL:        decimal.Zero,
	}
	if positions != nil {
		summary.Positions = make([]PositionView, 0, len(positions))
	}

	for _, p := range positions {
		if mv := p.MarketValue(); mv.Valid {
			summary.TotalValue = summary.TotalValue.Add(mv.Decimal)
		}
		if cost := p.CostBasis(); cost.Valid {
			summary.InvestedAmount = summary.InvestedAmount.Add(cost.Decimal)
		}
		if pl := p.UnrealizedPL(); pl.Valid {
			summary.TotalPL = summary.TotalPL.Add(pl.Decimal)
		}
		if p.IsOpen() {
			summary.PositionCount++
		}
		summary.Positions = append(summary.Positions, p.View())
	}

	if !summary.InvestedAmount.IsZero() {
		summary.PLPercentage = decimal.NewNullDecimal(
			summary.TotalPL.Div(summary.InvestedAmount).Mul(hundred).Round(plPercentagePlaces),
		)
	}

	return summary
}
