package ledger

import "errors"

var (
	// ErrInvariantViolation rejects an entry that would corrupt the book.
	ErrInvariantViolation = errors.New("ledger invariant violation")
	// ErrSymbolHalted rejects mutations on a symbol an operator has to look at first.
	ErrSymbolHalted = errors.New("symbol halted")
	ErrNotLoaded    = errors.New("ledger not loaded")
)
