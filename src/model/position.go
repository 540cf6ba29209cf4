package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// plPercentagePlaces is the rounding applied to percentage figures on read.
const plPercentagePlaces = 4

var hundred = decimal.NewFromInt(100)

// Position is one held security in one trading mode book. Only the canonical fields are
// stored; market value and P&L are derived on every read.
type Position struct {
	ID             uint                `gorm:"primaryKey" json:"-"`
	Mode           TradingMode         `gorm:"size:20;not null;uniqueIndex:idx_positions_mode_symbol" json:"mode"`
	Symbol         string              `gorm:"size:32;not null;uniqueIndex:idx_positions_mode_symbol" json:"symbol"`
	Quantity       decimal.NullDecimal `gorm:"type:numeric" json:"quantity"`
	AveragePrice   decimal.NullDecimal `gorm:"type:numeric" json:"averagePrice"`
	CurrentPrice   decimal.NullDecimal `gorm:"type:numeric" json:"currentPrice"`
	PriceUpdatedAt *time.Time          `json:"priceUpdatedAt,omitempty"`
	Halted         bool                `gorm:"not null;default:false" json:"halted"`
	HaltReason     string              `gorm:"size:1024" json:"haltReason,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

func (Position) TableName() string {
	return "positions"
}

// MarketValue is quantity * currentPrice, null unless both are set.
func (p Position) MarketValue() decimal.NullDecimal {
	if !p.Quantity.Valid || !p.CurrentPrice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.Quantity.Decimal.Mul(p.CurrentPrice.Decimal))
}

// CostBasis is quantity * averagePrice, null unless both are set.
func (p Position) CostBasis() decimal.NullDecimal {
	if !p.Quantity.Valid || !p.AveragePrice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.Quantity.Decimal.Mul(p.AveragePrice.Decimal))
}

// UnrealizedPL is marketValue - quantity * averagePrice.
func (p Position) UnrealizedPL() decimal.NullDecimal {
	mv := p.MarketValue()
	cost := p.CostBasis()
	if !mv.Valid || !cost.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(mv.Decimal.Sub(cost.Decimal))
}

// PLPercentage is unrealizedPL relative to the cost basis, in percent.
func (p Position) PLPercentage() decimal.NullDecimal {
	pl := p.UnrealizedPL()
	cost := p.CostBasis()
	if !pl.Valid || !cost.Valid || cost.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(pl.Decimal.Div(cost.Decimal).Mul(hundred).Round(plPercentagePlaces))
}

// IsOpen reports whether the position holds a positive quantity.
func (p Position) IsOpen() bool {
	return p.Quantity.Valid && p.Quantity.Decimal.IsPositive()
}

// View renders the wire representation consumed by the presentation layer.
func (p Position) View() PositionView {
	return PositionView{
		Symbol:       p.Symbol,
		Quantity:     p.Quantity,
		AveragePrice: p.AveragePrice,
		CurrentPrice: p.CurrentPrice,
		MarketValue:  p.MarketValue(),
		UnrealizedPL: p.UnrealizedPL(),
		PLPercentage: p.PLPercentage(),
	}
}

// PositionView field names are a wire contract. Missing numbers must encode as null.
type PositionView struct {
	Symbol       string              `json:"symbol"`
	Quantity     decimal.NullDecimal `json:"quantity"`
	AveragePrice decimal.NullDecimal `json:"averagePrice"`
	CurrentPrice decimal.NullDecimal `json:"currentPrice"`
	MarketValue  decimal.NullDecimal `json:"marketValue"`
	UnrealizedPL decimal.NullDecimal `json:"unrealizedPL"`
	PLPercentage decimal.NullDecimal `json:"plPercentage"`
}
