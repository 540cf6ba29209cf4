package model

import "time"

// Exception is a system-level failure persisted for operator follow-up.
type Exception struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Where the error happened
	Service string `gorm:"size:100;index" json:"service"` // e.g. "scheduler"
	Module  string `gorm:"size:100;index" json:"module"`  // e.g. "ledger"
	Method  string `gorm:"size:100" json:"method"`        // e.g. "ApplyFill"

	Mode   TradingMode `gorm:"size:20;index" json:"mode,omitempty"`
	Symbol string      `gorm:"size:32;index" json:"symbol,omitempty"`

	Message string `gorm:"type:text" json:"message"`

	// debug | info | warn | error | fatal
	Level string `gorm:"size:20;index" json:"level"`

	Context string `gorm:"type:text" json:"context,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
