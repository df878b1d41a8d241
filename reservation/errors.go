package reservation

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error code surfaced to the HTTP layer. The
// caller maps codes to status codes; raw storage errors never cross this
// boundary.
type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeNotFound             Code = "NOT_FOUND"
	CodeForbidden            Code = "FORBIDDEN"
	CodeSlotUnavailable      Code = "SLOT_UNAVAILABLE"
	CodeInsufficientCapacity Code = "INSUFFICIENT_CAPACITY"
	CodeVoucherNotFound      Code = "VOUCHER_NOT_FOUND"
	CodeVoucherExpired       Code = "VOUCHER_EXPIRED"
	CodeVoucherExhausted     Code = "VOUCHER_EXHAUSTED"
	CodeVoucherUserMismatch  Code = "VOUCHER_USER_MISMATCH"
	CodeVoucherBelowMinimum  Code = "VOUCHER_BELOW_MINIMUM"
	CodePersistenceConflict  Code = "PERSISTENCE_CONFLICT"
	CodeInvariantViolation   Code = "INVARIANT_VIOLATION"
	CodeInternal             Code = "INTERNAL_ERROR"
)

// Retryable reports whether the whole operation can safely be retried from
// scratch. Only serialization conflicts qualify: nothing was committed.
func (c Code) Retryable() bool {
	return c == CodePersistenceConflict
}

// Error is a structured core error.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds a coded error.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError builds a coded error around a cause.
func WrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the code from err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsVoucherError reports whether the code is one of the voucher redemption
// failures. All of them abort the reservation; none proceed without the
// discount.
func IsVoucherError(c Code) bool {
	switch c {
	case CodeVoucherNotFound, CodeVoucherExpired, CodeVoucherExhausted,
		CodeVoucherUserMismatch, CodeVoucherBelowMinimum:
		return true
	}
	return false
}

// ErrTxConflict is returned by store implementations when the transaction
// lost a serialization race (e.g. SQLSTATE 40001). The coordinator maps it
// to CodePersistenceConflict.
var ErrTxConflict = errors.New("transaction serialization conflict")
