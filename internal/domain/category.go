package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MonthsPerYear is used to derive a default accrual rate from the annual allocation.
const MonthsPerYear = 12

// LeaveCategory is a leave type with its allocation and carryover rules.
type LeaveCategory struct {
	ID                      string
	Name                    string
	DefaultAnnualAllocation decimal.Decimal
	AccrualRate             decimal.Decimal
	MaxCarryoverDays        int
	Active                  bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Cap returns MaxCarryoverDays as a decimal.
func (c *LeaveCategory) Cap() decimal.Decimal {
	return decimal.NewFromInt(int64(c.MaxCarryoverDays))
}

// Accrues reports whether the category credits anything on a monthly run.
func (c *LeaveCategory) Accrues() bool {
	return c.AccrualRate.IsPositive()
}

// Normalize trims the name and rounds day quantities.
func (c *LeaveCategory) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	c.DefaultAnnualAllocation = RoundDays(c.DefaultAnnualAllocation)
	c.AccrualRate = RoundDays(c.AccrualRate)
}

// Validate checks the category fields.
func (c *LeaveCategory) Validate() error {
	if err := ValidateCategoryName(c.Name); err != nil {
		return err
	}
	if c.DefaultAnnualAllocation.IsNegative() {
		return validationError("default annual allocation must not be negative")
	}
	if c.AccrualRate.IsNegative() {
		return validationError("accrual rate must not be negative")
	}
	if c.MaxCarryoverDays < 0 {
		return validationError("max carryover days must not be negative")
	}
	return nil
}

// DefaultAccrualRate spreads an annual allocation over twelve months.
func DefaultAccrualRate(annual decimal.Decimal) decimal.Decimal {
	return RoundDays(annual.Div(decimal.NewFromInt(MonthsPerYear)))
}
