package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the outcome of an order attempt.
type OrderStatus string

const (
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusRejected OrderStatus = "REJECTED"
	OrderStatusError    OrderStatus = "ERROR"
	OrderStatusPending  OrderStatus = "PENDING"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusError, OrderStatusPending:
		return true
	}
	return false
}

// Error kinds recorded on ERROR entries. The bridge reports the same values.
const (
	ErrorKindExecutionUnavailable   = "execution_unavailable"
	ErrorKindExecutionProtocolError = "execution_protocol_error"
	ErrorKindExecutionTimeout       = "execution_timeout"
	ErrorKindLedgerInvariant        = "ledger_invariant_violation"
	ErrorKindInternal               = "internal"
)

var ErrImmutableLogEntry = errors.New("transaction log entries are append-only")

// TransactionLog is one capital deployment attempt. Entries are never updated once written;
// reconciliation appends a new entry that points at the one it resolves.
type TransactionLog struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	CycleID        string              `gorm:"size:64;index" json:"cycleId"`
	Mode           TradingMode         `gorm:"size:20;not null;index" json:"mode"`
	Symbol         string              `gorm:"size:32;not null;index" json:"symbol"`
	Quantity       decimal.Decimal     `gorm:"type:numeric;not null" json:"quantity"`
	Price          decimal.NullDecimal `gorm:"type:numeric" json:"price"`
	Notional       decimal.Decimal     `gorm:"type:numeric;not null" json:"notional"`
	FilledQuantity decimal.NullDecimal `gorm:"type:numeric" json:"filledQuantity"`
	FilledPrice    decimal.NullDecimal `gorm:"type:numeric" json:"filledPrice"`
	Outcome        OrderStatus         `gorm:"size:20;not null;index" json:"outcome"`
	ErrorKind      string              `gorm:"size:50" json:"errorKind,omitempty"`
	BrokerOrderID  string              `gorm:"size:255" json:"brokerOrderId,omitempty"`
	Message        string              `gorm:"size:1024" json:"message"`
	ReconcilesID   *uint               `gorm:"index" json:"reconcilesId,omitempty"`
	ExecutedAt     time.Time           `gorm:"index;not null" json:"executedAt"`
	CreatedAt      time.Time           `json:"createdAt"`
}

func (TransactionLog) TableName() string {
	return "transaction_logs"
}

func (TransactionLog) BeforeUpdate(*gorm.DB) error { return ErrImmutableLogEntry }

func (TransactionLog) BeforeDelete(*gorm.DB) error { return ErrImmutableLogEntry }

// FilledNotional is the capital a fill consumed, zero for anything that is not a fill.
func (t TransactionLog) FilledNotional() decimal.Decimal {
	if t.Outcome != OrderStatusFilled || !t.FilledQuantity.Valid || !t.FilledPrice.Valid {
		return decimal.Zero
	}
	return t.FilledQuantity.Decimal.Mul(t.FilledPrice.Decimal)
}

// AwaitingReconciliation reports whether the broker-side outcome of a live attempt is unknown.
func (t TransactionLog) AwaitingReconciliation() bool {
	if t.Mode != TradingModeLive {
		return false
	}
	return t.Outcome == OrderStatusPending ||
		(t.Outcome == OrderStatusError && t.ErrorKind == ErrorKindExecutionTimeout)
}
