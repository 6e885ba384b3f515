package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
)

const displayDate = "Jan 2, 2006"

func days(d decimal.Decimal) string {
	return d.StringFixed(domain.DayPrecision)
}

func applicationSubmittedMessage(employee *domain.Employee, category string, app *domain.LeaveApplication) string {
	return fmt.Sprintf("%s has submitted a new %s leave request for %s days (%s - %s).",
		employee.Name, category, app.RequestedDays.String(),
		app.StartDate.Format(displayDate), app.EndDate.Format(displayDate))
}

func statusChangedMessage(category string, app *domain.LeaveApplication) string {
	return fmt.Sprintf("Your %s leave request for %s - %s has been %s.",
		category, app.StartDate.Format(displayDate), app.EndDate.Format(displayDate),
		strings.ToLower(string(app.Status)))
}

func accrualMessage(category string, rate, balance decimal.Decimal) string {
	return fmt.Sprintf("Your %s leave balance has been increased by %s days. New balance: %s days.",
		category, days(rate), days(balance))
}

func carryoverMessage(category string, row *domain.LedgerRow) string {
	if row.Balance.IsZero() {
		return fmt.Sprintf("Your %s leave balance is 0 days, so nothing was carried over into the new year.", category)
	}
	if row.ExcessDays.IsZero() {
		return fmt.Sprintf("All %s days of your %s leave have been carried over into the new year.",
			days(row.CarriedOver), category)
	}
	return fmt.Sprintf("%s days of your %s leave have been carried over into the new year. %s days exceed the carryover limit and will expire.",
		days(row.CarriedOver), category, days(row.ExcessDays))
}

func expiryMessage(category string, expired, balance decimal.Decimal) string {
	return fmt.Sprintf("%s days of your %s leave from last year have expired. Your current balance is %s days.",
		days(expired), category, days(balance))
}

func upcomingLeaveMessage(employee *domain.Employee, category string, app *domain.LeaveApplication) string {
	return fmt.Sprintf("Reminder: %s will be on %s leave starting %s until %s.",
		employee.Name, category, app.StartDate.Format(displayDate), app.EndDate.Format(displayDate))
}

func categoryName(categories map[string]*domain.LeaveCategory, id string) string {
	if c, ok := categories[id]; ok {
		return c.Name
	}
	return "leave"
}
