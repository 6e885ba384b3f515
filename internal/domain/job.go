package domain

import (
	"fmt"
	"time"
)

// Job names
const (
	JobAccrual       = "accrual"
	JobCarryover     = "carryover"
	JobExpiry        = "expiry"
	JobUpcomingLeave = "upcoming-leave"
)

// JobSummary is the outcome of one batch job run.
type JobSummary struct {
	RunID       string
	Job         string
	StartedAt   time.Time
	FinishedAt  time.Time
	Processed   int
	Skipped     int
	Errors      int
	Interrupted bool
}

// Duration returns how long the run took.
func (s *JobSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// String returns a one-line description for logs and CLI output.
func (s *JobSummary) String() string {
	msg := fmt.Sprintf("%s: processed %d rows, skipped %d, %d errors", s.Job, s.Processed, s.Skipped, s.Errors)
	if s.Interrupted {
		msg += " (interrupted by deadline)"
	}
	return msg
}
