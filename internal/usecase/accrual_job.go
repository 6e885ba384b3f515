package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// AccrualJob credits one month of accrual to every row of an accruing category.
type AccrualJob struct {
	txManager    TransactionManager
	retrier      Retrier
	ledgerRepo   LedgerRepository
	categoryRepo CategoryRepository
	notifier     Notifier
	runner       batchRunner
	opts         JobOptions
}

// NewAccrualJob creates a new AccrualJob.
func NewAccrualJob(
	txManager TransactionManager,
	retrier Retrier,
	ledgerRepo LedgerRepository,
	categoryRepo CategoryRepository,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
	opts JobOptions,
) *AccrualJob {
	opts = opts.withDefaults()
	return &AccrualJob{
		txManager:    txManager,
		retrier:      retrierOrDefault(retrier),
		ledgerRepo:   ledgerRepo,
		categoryRepo: categoryRepo,
		notifier:     notifier,
		runner:       newBatchRunner(opts.Parallelism, metrics, logger),
		opts:         opts,
	}
}

// Name implements Job.
func (j *AccrualJob) Name() string { return domain.JobAccrual }

// Run implements Job. Rows of categories with a zero rate, and of inactive categories
// unless IncludeInactive is set, are skipped.
func (j *AccrualJob) Run(ctx context.Context, now time.Time) (*domain.JobSummary, error) {
	categories, err := loadCategories(ctx, j.categoryRepo)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	ids, err := j.ledgerRepo.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ledger rows: %w", err)
	}

	return j.runner.run(ctx, j.Name(), ids, func(ctx context.Context, id string) (rowOutcome, error) {
		var category *domain.LeaveCategory

		row, outcome, err := lockedRowUpdate(ctx, j.retrier, j.txManager, j.ledgerRepo, id, now,
			func(row *domain.LedgerRow) (bool, error) {
				category = categories[row.CategoryID]
				if category == nil {
					return false, fmt.Errorf("%w: category %s", domain.ErrCategoryNotFound, row.CategoryID)
				}
				if !category.Accrues() || (!category.Active && !j.opts.IncludeInactive) {
					return false, nil
				}
				return true, row.Accrue(category.AccrualRate)
			})
		if err != nil || outcome == rowSkipped {
			return outcome, err
		}

		j.notifier.Notify(ctx, []string{row.EmployeeID}, accrualMessage(category.Name, category.AccrualRate, row.Balance))
		return rowProcessed, nil
	}), nil
}
