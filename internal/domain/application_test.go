package domain

import (
	"errors"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestBusinessDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  int
	}{
		{"single weekday", date(2025, 3, 3), date(2025, 3, 3), 1},
		{"single saturday", date(2025, 3, 8), date(2025, 3, 8), 0},
		{"monday to friday", date(2025, 3, 3), date(2025, 3, 7), 5},
		{"monday to sunday", date(2025, 3, 3), date(2025, 3, 9), 5},
		{"friday to monday", date(2025, 3, 7), date(2025, 3, 10), 2},
		{"two full weeks", date(2025, 3, 3), date(2025, 3, 16), 10},
		{"weekend only", date(2025, 3, 8), date(2025, 3, 9), 0},
		{"end before start", date(2025, 3, 7), date(2025, 3, 3), 0},
		{"across month and leap day", date(2024, 2, 26), date(2024, 3, 1), 5},
		{"time of day ignored", time.Date(2025, 3, 3, 23, 0, 0, 0, time.UTC), time.Date(2025, 3, 4, 1, 0, 0, 0, time.UTC), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BusinessDays(tt.start, tt.end); got != tt.want {
				t.Errorf("BusinessDays(%s, %s) = %d, want %d",
					tt.start.Format(time.DateOnly), tt.end.Format(time.DateOnly), got, tt.want)
			}
		})
	}
}

func TestTransitionEffect(t *testing.T) {
	tests := []struct {
		from, to ApplicationStatus
		want     BalanceEffect
	}{
		{ApplicationStatusPending, ApplicationStatusApproved, BalanceEffectDebit},
		{ApplicationStatusRejected, ApplicationStatusApproved, BalanceEffectDebit},
		{ApplicationStatusApproved, ApplicationStatusApproved, BalanceEffectNone},
		{ApplicationStatusPending, ApplicationStatusRejected, BalanceEffectNone},
		{ApplicationStatusApproved, ApplicationStatusRejected, BalanceEffectRestore},
		{ApplicationStatusApproved, ApplicationStatusPending, BalanceEffectRestore},
		{ApplicationStatusRejected, ApplicationStatusPending, BalanceEffectNone},
	}

	for _, tt := range tests {
		if got := TransitionEffect(tt.from, tt.to); got != tt.want {
			t.Errorf("TransitionEffect(%s, %s) = %d, want %d", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestLeaveApplication_CanBeDeletedBy(t *testing.T) {
	pending := &LeaveApplication{EmployeeID: "emp-1", Status: ApplicationStatusPending}
	approved := &LeaveApplication{EmployeeID: "emp-1", Status: ApplicationStatusApproved}

	if err := pending.CanBeDeletedBy("emp-1", RoleStaff); err != nil {
		t.Errorf("owner should delete pending application, got %v", err)
	}
	if err := pending.CanBeDeletedBy("admin-1", RoleAdmin); err != nil {
		t.Errorf("admin should delete pending application, got %v", err)
	}
	if err := pending.CanBeDeletedBy("emp-2", RoleManager); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := approved.CanBeDeletedBy("emp-1", RoleStaff); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

func TestApplicationStatus_IsValid(t *testing.T) {
	if !ApplicationStatusApproved.IsValid() {
		t.Error("Approved should be valid")
	}
	if ApplicationStatus("approved").IsValid() {
		t.Error("statuses are case sensitive")
	}
}
