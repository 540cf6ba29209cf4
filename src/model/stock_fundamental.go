package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockFundamental is one member of the candidate universe with the fundamentals text handed
// to the analysis engine. Rank orders the universe; lower ranks are considered first.
type StockFundamental struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	Symbol       string              `gorm:"size:32;not null;uniqueIndex" json:"symbol" csv:"symbol"`
	Rank         int                 `gorm:"not null;index" json:"rank" csv:"rank"`
	Fundamentals string              `gorm:"type:text" json:"fundamentals" csv:"fundamentals"`
	LastPrice    decimal.NullDecimal `gorm:"type:numeric" json:"lastPrice" csv:"-"`
	CreatedAt    time.Time           `json:"createdAt" csv:"-"`
	UpdatedAt    time.Time           `json:"updatedAt" csv:"-"`
}

func (StockFundamental) TableName() string {
	return "stock_fundamentals"
}
