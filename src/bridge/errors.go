package bridge

import (
	"errors"
	"fmt"

	"valueinvestor/src/model"
)

// Kind classifies a bridge failure. None of them imply that a fill happened.
type Kind string

const (
	ExecutionUnavailable   Kind = model.ErrorKindExecutionUnavailable
	ExecutionProtocolError Kind = model.ErrorKindExecutionProtocolError
	ExecutionTimeout       Kind = model.ErrorKindExecutionTimeout
)

var (
	ErrExecutionUnavailable   = &Error{Kind: ExecutionUnavailable}
	ErrExecutionProtocolError = &Error{Kind: ExecutionProtocolError}
	ErrExecutionTimeout       = &Error{Kind: ExecutionTimeout}

	ErrInvalidOrder = errors.New("invalid order request")
)

// Error is returned for every failure at the adapter process boundary.
type Error struct {
	Kind   Kind
	Symbol string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Symbol != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Symbol)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s. stderr: %s", msg, e.Stderr)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can use the Err* values with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the failure kind from err, if it came from the bridge.
func KindOf(err error) (Kind, bool) {
	var bErr *Error
	if errors.As(err, &bErr) {
		return bErr.Kind, true
	}
	return "", false
}
