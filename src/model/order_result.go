package model

import "github.com/shopspring/decimal"

// OrderResult is what the execution bridge reports for one order attempt.
type OrderResult struct {
	Success        bool                `json:"success"`
	OrderID        *string             `json:"orderId"`
	Message        string              `json:"message"`
	Status         OrderStatus         `json:"status"`
	FilledQuantity decimal.NullDecimal `json:"filledQuantity"`
	FilledPrice    decimal.NullDecimal `json:"filledPrice"`
}

func (r OrderResult) Filled() bool {
	return r.Success && r.Status == OrderStatusFilled && r.FilledQuantity.Valid && r.FilledPrice.Valid
}
