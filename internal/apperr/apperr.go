// Package apperr defines the error kinds the ledger reports to callers.
// Every error returned by the core either wraps one of these sentinels or
// is an internal failure that must not be shown to users verbatim.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInsufficientPool   = errors.New("insufficient pool funds")
	ErrInsufficientWallet = errors.New("insufficient wallet balance")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("not authorized")
	ErrStateConflict      = errors.New("state conflict")
)

func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func InsufficientPool(format string, args ...any) error {
	return wrap(ErrInsufficientPool, format, args...)
}

func InsufficientWallet(format string, args ...any) error {
	return wrap(ErrInsufficientWallet, format, args...)
}

func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return wrap(ErrUnauthorized, format, args...)
}

func StateConflict(format string, args ...any) error {
	return wrap(ErrStateConflict, format, args...)
}

// IsBusiness reports whether err carries a reason that may be shown to the
// caller as-is.
func IsBusiness(err error) bool {
	for _, kind := range []error{
		ErrValidation, ErrInsufficientPool, ErrInsufficientWallet,
		ErrNotFound, ErrUnauthorized, ErrStateConflict,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}

	return false
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
