// Package errs implements the finite failure taxonomy every fallible
// operation in this codebase returns instead of raising: retryability is a
// property of the Kind, not of which call site happens to catch it.
//
// Grounded on the original Python exception hierarchy in
// client/binance/exceptions.py — the constructors below reproduce the same
// code-to-kind mapping Go-side.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories the system distinguishes.
type Kind int

const (
	Transport Kind = iota
	Throttled
	AuthRejected
	OrderRejected
	InsufficientBalance
	InvalidSymbol
	ServerError
	Validation
	PolicyViolation
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "Transport"
	case Throttled:
		return "Throttled"
	case AuthRejected:
		return "AuthRejected"
	case OrderRejected:
		return "OrderRejected"
	case InsufficientBalance:
		return "InsufficientBalance"
	case InvalidSymbol:
		return "InvalidSymbol"
	case ServerError:
		return "ServerError"
	case Validation:
		return "Validation"
	case PolicyViolation:
		return "PolicyViolation"
	case NotFound:
		return "NotFound"
	default:
		return "Unknown"
	}
}

// Retryable reports whether the caller may retry this kind after backoff.
func (k Kind) Retryable() bool {
	switch k {
	case Transport, Throttled, ServerError:
		return true
	default:
		return false
	}
}

// TradingError is the concrete error type carrying a Kind plus enough
// context to reconstruct the venue's original complaint.
type TradingError struct {
	Kind          Kind
	Reason        string // e.g. "insufficient_for_step", "updates_forbidden"
	Field         string // set for Validation errors
	VenueCode     int    // raw venue error code, 0 if not venue-originated
	RetryAfterS   float64
	Message       string
	Wrapped       error
}

func (e *TradingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

func (e *TradingError) Unwrap() error { return e.Wrapped }

// As reports whether err (or something it wraps) is a *TradingError of the
// given Kind.
func As(err error, kind Kind) bool {
	var te *TradingError
	if !errors.As(err, &te) {
		return false
	}
	return te.Kind == kind
}

func New(kind Kind, message string) *TradingError {
	return &TradingError{Kind: kind, Message: message}
}

func NewValidation(field, reason string) *TradingError {
	return &TradingError{Kind: Validation, Field: field, Reason: reason}
}

func NewPolicyViolation(reason string) *TradingError {
	return &TradingError{Kind: PolicyViolation, Reason: reason}
}

func NewThrottled(retryAfterS float64, code int) *TradingError {
	return &TradingError{Kind: Throttled, RetryAfterS: retryAfterS, VenueCode: code}
}

func Wrap(kind Kind, code int, message string, cause error) *TradingError {
	return &TradingError{Kind: kind, VenueCode: code, Message: message, Wrapped: cause}
}

// FromVenueCode maps a Binance-style {code,msg} error body to a Kind,
// mirroring parse_binance_error in the original client.
func FromVenueCode(code int, httpStatus int, msg string) *TradingError {
	switch code {
	case -1003, -1015:
		return NewThrottled(60, code)
	case -1022, -2014, -2015:
		return &TradingError{Kind: AuthRejected, VenueCode: code, Message: msg}
	case -2019:
		return &TradingError{Kind: InsufficientBalance, VenueCode: code, Message: msg}
	case -1121:
		return &TradingError{Kind: InvalidSymbol, VenueCode: code, Message: msg}
	case -1007:
		return &TradingError{Kind: Transport, VenueCode: code, Message: msg}
	case -1111, -2010, -2011, -4164:
		return &TradingError{Kind: OrderRejected, VenueCode: code, Message: msg}
	}
	switch {
	case httpStatus == 429:
		return NewThrottled(60, code)
	case httpStatus == 408:
		return &TradingError{Kind: Transport, VenueCode: code, Message: msg}
	case httpStatus >= 500:
		return &TradingError{Kind: ServerError, VenueCode: code, Message: msg}
	case httpStatus >= 400:
		return &TradingError{Kind: OrderRejected, VenueCode: code, Message: msg}
	}
	return &TradingError{Kind: ServerError, VenueCode: code, Message: msg}
}
