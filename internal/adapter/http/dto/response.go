package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ApplicationResponse represents a leave application in API responses.
type ApplicationResponse struct {
	ID             string          `json:"id"`
	EmployeeID     string          `json:"employee_id"`
	CategoryID     string          `json:"category_id"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	RequestedDays  decimal.Decimal `json:"requested_days"`
	Reason         *string         `json:"reason,omitempty"`
	DocumentURL    *string         `json:"document_url,omitempty"`
	Status         string          `json:"status"`
	ManagerComment *string         `json:"manager_comment,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ApplicationFromDomain converts a domain application to response.
func ApplicationFromDomain(a *domain.LeaveApplication) *ApplicationResponse {
	return &ApplicationResponse{
		ID:             a.ID,
		EmployeeID:     a.EmployeeID,
		CategoryID:     a.CategoryID,
		StartDate:      a.StartDate.Format(DateLayout),
		EndDate:        a.EndDate.Format(DateLayout),
		RequestedDays:  a.RequestedDays,
		Reason:         a.Reason,
		DocumentURL:    a.DocumentURL,
		Status:         string(a.Status),
		ManagerComment: a.ManagerComment,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// ApplicationsFromDomain converts a slice of applications.
func ApplicationsFromDomain(apps []*domain.LeaveApplication) []*ApplicationResponse {
	result := make([]*ApplicationResponse, len(apps))
	for i, a := range apps {
		result[i] = ApplicationFromDomain(a)
	}
	return result
}

// ListApplicationsResponse represents a page of applications.
type ListApplicationsResponse struct {
	Applications []*ApplicationResponse `json:"applications"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

// LedgerRowResponse represents a ledger row in API responses.
type LedgerRowResponse struct {
	ID          string          `json:"id"`
	EmployeeID  string          `json:"employee_id"`
	CategoryID  string          `json:"category_id"`
	Balance     decimal.Decimal `json:"balance"`
	CarriedOver decimal.Decimal `json:"carried_over"`
	ExcessDays  decimal.Decimal `json:"excess_days"`
	Version     int64           `json:"version"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// LedgerRowFromDomain converts a domain row to response.
func LedgerRowFromDomain(r *domain.LedgerRow) *LedgerRowResponse {
	return &LedgerRowResponse{
		ID:          r.ID,
		EmployeeID:  r.EmployeeID,
		CategoryID:  r.CategoryID,
		Balance:     r.Balance,
		CarriedOver: r.CarriedOver,
		ExcessDays:  r.ExcessDays,
		Version:     r.Version,
		UpdatedAt:   r.UpdatedAt,
	}
}

// LedgerRowsFromDomain converts a slice of rows.
func LedgerRowsFromDomain(rows []*domain.LedgerRow) []*LedgerRowResponse {
	result := make([]*LedgerRowResponse, len(rows))
	for i, r := range rows {
		result[i] = LedgerRowFromDomain(r)
	}
	return result
}

// ListBalancesResponse represents a set of ledger rows.
type ListBalancesResponse struct {
	Balances []*LedgerRowResponse `json:"balances"`
}

// CategoryResponse represents a leave category in API responses.
type CategoryResponse struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	DefaultAnnualAllocation decimal.Decimal `json:"default_annual_allocation"`
	AccrualRate             decimal.Decimal `json:"accrual_rate"`
	MaxCarryoverDays        int             `json:"max_carryover_days"`
	Active                  bool            `json:"active"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// CategoryFromDomain converts a domain category to response.
func CategoryFromDomain(c *domain.LeaveCategory) *CategoryResponse {
	return &CategoryResponse{
		ID:                      c.ID,
		Name:                    c.Name,
		DefaultAnnualAllocation: c.DefaultAnnualAllocation,
		AccrualRate:             c.AccrualRate,
		MaxCarryoverDays:        c.MaxCarryoverDays,
		Active:                  c.Active,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}

// ListCategoriesResponse represents every category.
type ListCategoriesResponse struct {
	Categories []*CategoryResponse `json:"categories"`
}

// CategoriesFromDomain converts a slice of categories.
func CategoriesFromDomain(categories []*domain.LeaveCategory) []*CategoryResponse {
	result := make([]*CategoryResponse, len(categories))
	for i, c := range categories {
		result[i] = CategoryFromDomain(c)
	}
	return result
}

// NotificationResponse represents a notification in API responses.
type NotificationResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// ListNotificationsResponse represents a page of notifications.
type ListNotificationsResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Unread        int                     `json:"unread"`
}

// NotificationsFromDomain converts a slice of notifications.
func NotificationsFromDomain(list []*domain.Notification) []*NotificationResponse {
	result := make([]*NotificationResponse, len(list))
	for i, n := range list {
		result[i] = &NotificationResponse{
			ID:        n.ID,
			UserID:    n.UserID,
			Message:   n.Message,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
	}
	return result
}

// JobSummaryResponse represents the outcome of a job run.
type JobSummaryResponse struct {
	RunID       string    `json:"run_id"`
	Job         string    `json:"job"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Processed   int       `json:"processed"`
	Skipped     int       `json:"skipped"`
	Errors      int       `json:"errors"`
	Interrupted bool      `json:"interrupted"`
}

// JobSummaryFromDomain converts a job summary to response.
func JobSummaryFromDomain(s *domain.JobSummary) *JobSummaryResponse {
	return &JobSummaryResponse{
		RunID:       s.RunID,
		Job:         s.Job,
		StartedAt:   s.StartedAt,
		FinishedAt:  s.FinishedAt,
		Processed:   s.Processed,
		Skipped:     s.Skipped,
		Errors:      s.Errors,
		Interrupted: s.Interrupted,
	}
}

// InvariantViolationResponse describes a row breaking a ledger invariant.
type InvariantViolationResponse struct {
	LedgerRowID string `json:"ledger_row_id"`
	EmployeeID  string `json:"employee_id"`
	CategoryID  string `json:"category_id"`
	Reason      string `json:"reason"`
}

// ConsistencyResponse represents a ledger consistency report.
type ConsistencyResponse struct {
	Consistent bool                         `json:"consistent"`
	CheckedAt  time.Time                    `json:"checked_at"`
	RowCount   int                          `json:"row_count"`
	Violations []InvariantViolationResponse `json:"violations"`
}

// ConsistencyFromReport converts an invariant report to response.
func ConsistencyFromReport(r *usecase.InvariantReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		Consistent: r.Consistent(),
		CheckedAt:  r.CheckedAt,
		RowCount:   r.RowCount,
		Violations: make([]InvariantViolationResponse, len(r.Violations)),
	}
	for i, v := range r.Violations {
		resp.Violations[i] = InvariantViolationResponse{
			LedgerRowID: v.LedgerRowID,
			EmployeeID:  v.EmployeeID,
			CategoryID:  v.CategoryID,
			Reason:      v.Reason,
		}
	}
	return resp
}
