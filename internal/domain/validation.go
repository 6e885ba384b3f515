package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Validation constants
const (
	MaxCategoryNameLength = 100
	MinCategoryNameLength = 1
	MaxReasonLength       = 2000
	MaxCommentLength      = 2000
	MaxDocumentURLLength  = 2048
	MaxApplicationSpan    = 366 // days between start and end
	MaxAnnualAllocation   = "366"
)

// ValidateCategoryName validates a leave category name
func ValidateCategoryName(name string) error {
	name = strings.TrimSpace(name)

	if len(name) < MinCategoryNameLength {
		return validationError("category name cannot be empty")
	}

	if len(name) > MaxCategoryNameLength {
		return validationError("category name exceeds %d characters", MaxCategoryNameLength)
	}

	return nil
}

// ValidateDays validates a non-negative day quantity with at most two decimals.
func ValidateDays(field string, days decimal.Decimal) error {
	if days.IsNegative() {
		return validationError("%s must not be negative", field)
	}

	maxDays, _ := decimal.NewFromString(MaxAnnualAllocation)
	if days.GreaterThan(maxDays) {
		return validationError("%s exceeds %s days", field, MaxAnnualAllocation)
	}

	if !days.Equal(RoundDays(days)) {
		return validationError("%s allows at most %d decimal places", field, DayPrecision)
	}

	return nil
}

// ValidateDateRange validates a leave date range.
func ValidateDateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return validationError("start and end dates are required")
	}

	if end.Before(start) {
		return validationError("end date %s is before start date %s",
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	if end.Sub(start) > MaxApplicationSpan*24*time.Hour {
		return validationError("date range exceeds %d days", MaxApplicationSpan)
	}

	return nil
}

// ValidateReason validates the optional free-text reason
func ValidateReason(reason *string) error {
	if reason != nil && len(*reason) > MaxReasonLength {
		return validationError("reason exceeds %d characters", MaxReasonLength)
	}
	return nil
}

// ValidateComment validates the optional manager comment
func ValidateComment(comment *string) error {
	if comment != nil && len(*comment) > MaxCommentLength {
		return validationError("manager comment exceeds %d characters", MaxCommentLength)
	}
	return nil
}

// ValidateDocumentURL validates the optional supporting document link
func ValidateDocumentURL(raw *string) error {
	if raw == nil || *raw == "" {
		return nil
	}

	if len(*raw) > MaxDocumentURLLength {
		return validationError("document URL exceeds %d characters", MaxDocumentURLLength)
	}

	u, err := url.Parse(*raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validationError("document URL %q is not an absolute http(s) URL", *raw)
	}

	return nil
}

// ValidateID rejects blank identifiers.
func ValidateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
