package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CashBalance is the cash held by one trading mode book.
type CashBalance struct {
	Mode      TradingMode     `gorm:"primaryKey;size:20" json:"mode"`
	Balance   decimal.Decimal `gorm:"type:numeric;not null" json:"balance"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (CashBalance) TableName() string {
	return "cash_balances"
}
