package usecase

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
)

func decimalDays(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}

// errorType returns a low-cardinality metric label for err.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		return "directory_unavailable"
	default:
		return "internal"
	}
}
