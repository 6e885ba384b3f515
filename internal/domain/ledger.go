package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DayPrecision is the number of decimal places kept for day quantities.
const DayPrecision = 2

// LedgerRow is the leave balance of one employee for one category.
//
// Balance is the number of days the employee may still take. CarriedOver is the part of
// the balance brought over from the previous year and ExcessDays is the part quarantined
// at year end, waiting to be written off by the expiry run.
type LedgerRow struct {
	ID          string
	EmployeeID  string
	CategoryID  string
	Balance     decimal.Decimal
	CarriedOver decimal.Decimal
	ExcessDays  decimal.Decimal
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLedgerRow returns a fresh row for an employee and category.
func NewLedgerRow(id, employeeID string, category *LeaveCategory, now time.Time) *LedgerRow {
	return &LedgerRow{
		ID:          id,
		EmployeeID:  employeeID,
		CategoryID:  category.ID,
		Balance:     RoundDays(category.DefaultAnnualAllocation),
		CarriedOver: decimal.Zero,
		ExcessDays:  decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CanDebit checks if the balance covers the requested days.
func (r *LedgerRow) CanDebit(days decimal.Decimal) error {
	if days.GreaterThan(r.Balance) {
		return NewInsufficientBalanceError(r.Balance, days)
	}
	return nil
}

// Debit removes approved days from the balance.
func (r *LedgerRow) Debit(days decimal.Decimal) error {
	if !days.IsPositive() {
		return validationError("debit must be positive, got %s", days)
	}
	if err := r.CanDebit(days); err != nil {
		return err
	}
	r.Balance = RoundDays(r.Balance.Sub(days))
	return nil
}

// Credit returns days to the balance, e.g. when an approval is reversed.
func (r *LedgerRow) Credit(days decimal.Decimal) error {
	if !days.IsPositive() {
		return validationError("credit must be positive, got %s", days)
	}
	r.Balance = RoundDays(r.Balance.Add(days))
	return nil
}

// Accrue adds one month of accrual to the balance.
func (r *LedgerRow) Accrue(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return validationError("accrual rate must be positive, got %s", rate)
	}
	r.Balance = RoundDays(r.Balance.Add(rate))
	return nil
}

// CarryOver splits the current balance into the capped carryover and the excess.
// The balance itself is left untouched; the excess only becomes pending expiry.
func (r *LedgerRow) CarryOver(maxCarryover decimal.Decimal) {
	balance := decimal.Max(r.Balance, decimal.Zero)
	r.CarriedOver = RoundDays(decimal.Min(balance, maxCarryover))
	r.ExcessDays = RoundDays(decimal.Max(decimal.Zero, balance.Sub(maxCarryover)))
}

// Expire writes off the pending excess and returns the amount removed.
func (r *LedgerRow) Expire() decimal.Decimal {
	expired := r.ExcessDays
	if !expired.IsPositive() {
		return decimal.Zero
	}

	newBalance := r.Balance.Sub(expired)
	if newBalance.IsNegative() {
		// Approvals or adjustments after carryover lowered the balance below the
		// quarantined amount; the excess is not reduced by them.
		expired = r.Balance
		newBalance = decimal.Zero
	}

	r.Balance = RoundDays(newBalance)
	r.ExcessDays = decimal.Zero
	return RoundDays(expired)
}

// Adjust overrides balance and/or carried-over days.
func (r *LedgerRow) Adjust(balance, carriedOver *decimal.Decimal, maxCarryover decimal.Decimal) error {
	if balance == nil && carriedOver == nil {
		return validationError("nothing to adjust")
	}
	if balance != nil {
		if balance.IsNegative() {
			return validationError("balance must not be negative")
		}
		r.Balance = RoundDays(*balance)
	}
	if carriedOver != nil {
		if carriedOver.IsNegative() || carriedOver.GreaterThan(maxCarryover) {
			return validationError("carried over must be between 0 and %s", maxCarryover)
		}
		r.CarriedOver = RoundDays(*carriedOver)
	}
	return nil
}

// CheckInvariants verifies the row against its category cap.
func (r *LedgerRow) CheckInvariants(maxCarryover decimal.Decimal) error {
	switch {
	case r.Balance.IsNegative():
		return fmt.Errorf("%w: balance %s is negative", ErrInvariantViolation, r.Balance)
	case r.CarriedOver.IsNegative():
		return fmt.Errorf("%w: carried over %s is negative", ErrInvariantViolation, r.CarriedOver)
	case r.CarriedOver.GreaterThan(maxCarryover):
		return fmt.Errorf("%w: carried over %s exceeds cap %s", ErrInvariantViolation, r.CarriedOver, maxCarryover)
	case r.ExcessDays.IsNegative():
		return fmt.Errorf("%w: excess days %s is negative", ErrInvariantViolation, r.ExcessDays)
	}
	return nil
}

// RoundDays rounds a day quantity to DayPrecision places.
func RoundDays(d decimal.Decimal) decimal.Decimal {
	return d.Round(DayPrecision)
}
