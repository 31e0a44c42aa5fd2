package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotAvailable      Kind = "not_available"
	KindLimitExceeded     Kind = "limit_exceeded"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindAlreadyClaimed    Kind = "already_claimed"
	KindNotAWinner        Kind = "not_a_winner"
	KindNotCompleted      Kind = "not_completed"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindSupplyExhausted   Kind = "supply_exhausted"
	KindInvalidArgument   Kind = "invalid_argument"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

// Error carries a Kind so callers can map failures to a response without string matching.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works on wrapped values.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind && t.Message == ""
	}
	return false
}

var (
	ErrNotAvailable      = &Error{Kind: KindNotAvailable}
	ErrLimitExceeded     = &Error{Kind: KindLimitExceeded}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrAlreadyClaimed    = &Error{Kind: KindAlreadyClaimed}
	ErrNotAWinner        = &Error{Kind: KindNotAWinner}
	ErrNotCompleted      = &Error{Kind: KindNotCompleted}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrSupplyExhausted   = &Error{Kind: KindSupplyExhausted}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
	ErrConflict          = &Error{Kind: KindConflict}
)

func E(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindLimitExceeded:
		return http.StatusTooManyRequests
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindNotAvailable, KindInvalidState, KindAlreadyClaimed, KindNotAWinner,
		KindNotCompleted, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
