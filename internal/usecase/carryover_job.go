package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// CarryoverJob splits every balance into the part carried into the new year and the
// excess that the expiry job will write off.
type CarryoverJob struct {
	txManager    TransactionManager
	retrier      Retrier
	ledgerRepo   LedgerRepository
	categoryRepo CategoryRepository
	notifier     Notifier
	runner       batchRunner
}

// NewCarryoverJob creates a new CarryoverJob.
func NewCarryoverJob(
	txManager TransactionManager,
	retrier Retrier,
	ledgerRepo LedgerRepository,
	categoryRepo CategoryRepository,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
	opts JobOptions,
) *CarryoverJob {
	opts = opts.withDefaults()
	return &CarryoverJob{
		txManager:    txManager,
		retrier:      retrierOrDefault(retrier),
		ledgerRepo:   ledgerRepo,
		categoryRepo: categoryRepo,
		notifier:     notifier,
		runner:       newBatchRunner(opts.Parallelism, metrics, logger),
	}
}

// Name implements Job.
func (j *CarryoverJob) Name() string { return domain.JobCarryover }

// Run implements Job. Running it twice in a row yields the same split.
func (j *CarryoverJob) Run(ctx context.Context, now time.Time) (*domain.JobSummary, error) {
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

		row, _, err := lockedRowUpdate(ctx, j.retrier, j.txManager, j.ledgerRepo, id, now,
			func(row *domain.LedgerRow) (bool, error) {
				category = categories[row.CategoryID]
				if category == nil {
					return false, fmt.Errorf("%w: category %s", domain.ErrCategoryNotFound, row.CategoryID)
				}
				row.CarryOver(category.Cap())
				return true, nil
			})
		if err != nil {
			return 0, err
		}

		j.notifier.Notify(ctx, []string{row.EmployeeID}, carryoverMessage(category.Name, row))
		return rowProcessed, nil
	}), nil
}
