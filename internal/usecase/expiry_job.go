package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// ExpiryJob writes off the excess days quarantined by the carryover job.
type ExpiryJob struct {
	txManager    TransactionManager
	retrier      Retrier
	ledgerRepo   LedgerRepository
	categoryRepo CategoryRepository
	notifier     Notifier
	metrics      *metrics.Metrics
	runner       batchRunner
}

// NewExpiryJob creates a new ExpiryJob.
func NewExpiryJob(
	txManager TransactionManager,
	retrier Retrier,
	ledgerRepo LedgerRepository,
	categoryRepo CategoryRepository,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
	opts JobOptions,
) *ExpiryJob {
	opts = opts.withDefaults()
	return &ExpiryJob{
		txManager:    txManager,
		retrier:      retrierOrDefault(retrier),
		ledgerRepo:   ledgerRepo,
		categoryRepo: categoryRepo,
		notifier:     notifier,
		metrics:      metrics,
		runner:       newBatchRunner(opts.Parallelism, metrics, logger),
	}
}

// Name implements Job.
func (j *ExpiryJob) Name() string { return domain.JobExpiry }

// Run implements Job. Only rows with pending excess are visited; a row whose excess
// is gone by the time it is locked is skipped, so a second run is a no-op.
func (j *ExpiryJob) Run(ctx context.Context, now time.Time) (*domain.JobSummary, error) {
	categories, err := loadCategories(ctx, j.categoryRepo)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	ids, err := j.ledgerRepo.ListWithExcess(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger rows with excess: %w", err)
	}

	return j.runner.run(ctx, j.Name(), ids, func(ctx context.Context, id string) (rowOutcome, error) {
		var expired decimal.Decimal

		row, outcome, err := lockedRowUpdate(ctx, j.retrier, j.txManager, j.ledgerRepo, id, now,
			func(row *domain.LedgerRow) (bool, error) {
				if !row.ExcessDays.IsPositive() {
					return false, nil
				}
				expired = row.Expire()
				return true, nil
			})
		if err != nil || outcome == rowSkipped {
			return outcome, err
		}

		j.metrics.DaysExpired.Add(expired.InexactFloat64())
		j.notifier.Notify(ctx, []string{row.EmployeeID},
			expiryMessage(categoryName(categories, row.CategoryID), expired, row.Balance))
		return rowProcessed, nil
	}), nil
}
