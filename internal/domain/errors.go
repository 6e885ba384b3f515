package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Command errors
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrInsufficientBalance  = errors.New("insufficient leave balance")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidState         = errors.New("invalid state")
	ErrDirectoryUnavailable = errors.New("employee directory unavailable")

	// Not-found variants
	ErrCategoryNotFound     = fmt.Errorf("leave category %w", ErrNotFound)
	ErrLedgerRowNotFound    = fmt.Errorf("ledger row %w", ErrNotFound)
	ErrApplicationNotFound  = fmt.Errorf("leave application %w", ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("notification %w", ErrNotFound)
	ErrEmployeeNotFound     = fmt.Errorf("employee %w", ErrNotFound)

	// Category errors
	ErrCategoryInUse     = errors.New("leave category is referenced by ledger rows or applications")
	ErrCategoryNameTaken = errors.New("leave category with this name already exists")

	// Ledger errors
	ErrInvariantViolation = errors.New("ledger invariant violated")
)

// InsufficientBalanceError carries the values behind a rejected debit.
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("Insufficient leave balance. Available: %s, Requested: %s",
		e.Available.StringFixed(DayPrecision), e.Requested.StringFixed(DayPrecision))
}

// Is reports ErrInsufficientBalance as the sentinel for this error.
func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// NewInsufficientBalanceError builds an InsufficientBalanceError.
func NewInsufficientBalanceError(available, requested decimal.Decimal) error {
	return &InsufficientBalanceError{Available: available, Requested: requested}
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ValidationErrorf returns an error wrapping ErrValidation.
func ValidationErrorf(format string, args ...any) error {
	return validationError(format, args...)
}
