package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationStatus is the lifecycle state of a leave application.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "Pending"
	ApplicationStatusApproved ApplicationStatus = "Approved"
	ApplicationStatusRejected ApplicationStatus = "Rejected"
)

// IsValid checks if the status is known.
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

// LeaveApplication is a request for leave over a date range.
type LeaveApplication struct {
	ID             string
	EmployeeID     string
	CategoryID     string
	StartDate      time.Time
	EndDate        time.Time
	RequestedDays  decimal.Decimal
	Reason         *string
	DocumentURL    *string
	Status         ApplicationStatus
	ManagerComment *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BalanceEffect describes what a status change does to the ledger.
type BalanceEffect int

const (
	BalanceEffectNone BalanceEffect = iota
	BalanceEffectDebit
	BalanceEffectRestore
)

// TransitionEffect returns the ledger effect of moving from one status to another.
// Entering Approved debits the requested days; leaving Approved restores them.
func TransitionEffect(from, to ApplicationStatus) BalanceEffect {
	switch {
	case from == to:
		return BalanceEffectNone
	case to == ApplicationStatusApproved:
		return BalanceEffectDebit
	case from == ApplicationStatusApproved:
		return BalanceEffectRestore
	default:
		return BalanceEffectNone
	}
}

// CanBeDeletedBy checks ownership and status for deletion.
func (a *LeaveApplication) CanBeDeletedBy(requesterID string, role Role) error {
	if a.EmployeeID != requesterID && role != RoleAdmin {
		return ErrForbidden
	}
	if a.Status != ApplicationStatusPending {
		return ErrInvalidState
	}
	return nil
}

// BusinessDays counts Monday to Friday days in [start, end], both inclusive.
// Only the calendar date of each bound is considered.
func BusinessDays(start, end time.Time) int {
	s := truncateToDate(start)
	e := truncateToDate(end)
	if e.Before(s) {
		return 0
	}

	totalDays := int(e.Sub(s).Hours()/24) + 1
	weeks := totalDays / 7
	days := weeks * 5

	// Walk the remaining partial week.
	cur := s.AddDate(0, 0, weeks*7)
	for !cur.After(e) {
		if wd := cur.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
		cur = cur.AddDate(0, 0, 1)
	}

	return days
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
