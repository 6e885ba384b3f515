package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking rows
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultJobParallelism is how many ledger rows a batch job works on at once
	DefaultJobParallelism = 4

	// DefaultReminderDaysAhead is how far ahead the upcoming-leave job looks
	DefaultReminderDaysAhead = 3

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
