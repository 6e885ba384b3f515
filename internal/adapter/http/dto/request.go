package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CreateApplicationRequest represents a request to apply for leave.
type CreateApplicationRequest struct {
	EmployeeID  string  `json:"employee_id"`
	CategoryID  string  `json:"category_id"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	Reason      *string `json:"reason,omitempty"`
	DocumentURL *string `json:"document_url,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateApplicationRequest) ToUseCaseInput() (usecase.CreateApplicationInput, error) {
	start, err := parseDate("start_date", r.StartDate)
	if err != nil {
		return usecase.CreateApplicationInput{}, err
	}
	end, err := parseDate("end_date", r.EndDate)
	if err != nil {
		return usecase.CreateApplicationInput{}, err
	}
	return usecase.CreateApplicationInput{
		EmployeeID:  r.EmployeeID,
		CategoryID:  r.CategoryID,
		StartDate:   start,
		EndDate:     end,
		Reason:      r.Reason,
		DocumentURL: r.DocumentURL,
	}, nil
}

// UpdateStatusRequest represents a review decision.
type UpdateStatusRequest struct {
	Status         string  `json:"status"`
	ManagerComment *string `json:"manager_comment,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateStatusRequest) ToUseCaseInput(applicationID string) usecase.UpdateStatusInput {
	return usecase.UpdateStatusInput{
		ApplicationID:  applicationID,
		Status:         domain.ApplicationStatus(r.Status),
		ManagerComment: r.ManagerComment,
	}
}

// AdjustBalanceRequest represents an admin override of a ledger row.
type AdjustBalanceRequest struct {
	Balance     *decimal.Decimal `json:"balance,omitempty"`
	CarriedOver *decimal.Decimal `json:"carried_over,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *AdjustBalanceRequest) ToUseCaseInput(rowID string) usecase.AdjustBalanceInput {
	return usecase.AdjustBalanceInput{
		LedgerRowID: rowID,
		Balance:     r.Balance,
		CarriedOver: r.CarriedOver,
	}
}

// CreateCategoryRequest represents a request to create a leave category.
type CreateCategoryRequest struct {
	Name                    string           `json:"name"`
	DefaultAnnualAllocation decimal.Decimal  `json:"default_annual_allocation"`
	AccrualRate             *decimal.Decimal `json:"accrual_rate,omitempty"`
	MaxCarryoverDays        int              `json:"max_carryover_days"`
	Active                  *bool            `json:"active,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateCategoryRequest) ToUseCaseInput() usecase.CreateCategoryInput {
	return usecase.CreateCategoryInput{
		Name:                    r.Name,
		DefaultAnnualAllocation: r.DefaultAnnualAllocation,
		AccrualRate:             r.AccrualRate,
		MaxCarryoverDays:        r.MaxCarryoverDays,
		Active:                  r.Active,
	}
}

// UpdateCategoryRequest represents a partial category update.
type UpdateCategoryRequest struct {
	Name                    *string          `json:"name,omitempty"`
	DefaultAnnualAllocation *decimal.Decimal `json:"default_annual_allocation,omitempty"`
	AccrualRate             *decimal.Decimal `json:"accrual_rate,omitempty"`
	MaxCarryoverDays        *int             `json:"max_carryover_days,omitempty"`
	Active                  *bool            `json:"active,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateCategoryRequest) ToUseCaseInput(id string) usecase.UpdateCategoryInput {
	return usecase.UpdateCategoryInput{
		ID:                      id,
		Name:                    r.Name,
		DefaultAnnualAllocation: r.DefaultAnnualAllocation,
		AccrualRate:             r.AccrualRate,
		MaxCarryoverDays:        r.MaxCarryoverDays,
		Active:                  r.Active,
	}
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, domain.ValidationErrorf("%s must be a date in YYYY-MM-DD format", field)
	}
	return t, nil
}

// ParseStatus validates a status query parameter. Empty means no filter.
func ParseStatus(value string) (domain.ApplicationStatus, error) {
	if value == "" {
		return "", nil
	}
	status := domain.ApplicationStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", domain.ErrValidation, value)
	}
	return status, nil
}
