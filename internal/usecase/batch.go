package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// JobOptions tunes the batch jobs.
type JobOptions struct {
	// Parallelism is the number of rows worked on at once.
	Parallelism int
	// IncludeInactive makes the accrual job credit rows of inactive categories.
	IncludeInactive bool
	// ReminderDaysAhead is the look-ahead window of the upcoming-leave job.
	ReminderDaysAhead int
}

func (o JobOptions) withDefaults() JobOptions {
	if o.Parallelism <= 0 {
		o.Parallelism = DefaultJobParallelism
	}
	if o.ReminderDaysAhead <= 0 {
		o.ReminderDaysAhead = DefaultReminderDaysAhead
	}
	return o
}

type rowOutcome int

const (
	rowProcessed rowOutcome = iota
	rowSkipped
)

// rowFunc handles one row in its own transaction.
type rowFunc func(ctx context.Context, id string) (rowOutcome, error)

// batchRunner applies a rowFunc to a list of ids with bounded parallelism. A failing
// row is logged and counted but never stops its siblings. The deadline of the run
// context is checked before each new row; rows already started finish on their own
// transaction timeout.
type batchRunner struct {
	parallelism int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

func newBatchRunner(parallelism int, m *metrics.Metrics, logger zerolog.Logger) batchRunner {
	return batchRunner{parallelism: parallelism, metrics: m, logger: logger}
}

func (b batchRunner) run(ctx context.Context, job string, ids []string, fn rowFunc) *domain.JobSummary {
	summary := &domain.JobSummary{
		RunID:     uuid.NewString(),
		Job:       job,
		StartedAt: time.Now().UTC(),
	}
	logger := b.logger.With().Str("job", job).Str("run_id", summary.RunID).Logger()
	logger.Info().Int("rows", len(ids)).Msg("job started")

	var processed, skipped, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(b.parallelism)

	for _, id := range ids {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		id := id
		g.Go(func() error {
			rowCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTransactionTimeout)
			defer cancel()

			outcome, err := fn(rowCtx, id)
			switch {
			case err != nil:
				failed.Add(1)
				logger.Error().Err(err).Str("id", id).Msg("row failed")
			case outcome == rowSkipped:
				skipped.Add(1)
			default:
				processed.Add(1)
			}
			return nil
		})
	}

	_ = g.Wait()

	summary.Processed = int(processed.Load())
	summary.Skipped = int(skipped.Load())
	summary.Errors = int(failed.Load())
	summary.FinishedAt = time.Now().UTC()

	b.record(logger, summary)
	return summary
}

func (b batchRunner) record(logger zerolog.Logger, summary *domain.JobSummary) {
	status := "ok"
	switch {
	case summary.Interrupted:
		status = "interrupted"
	case summary.Errors > 0:
		status = "partial"
	}

	b.metrics.JobRuns.WithLabelValues(summary.Job, status).Inc()
	b.metrics.JobRowsProcessed.WithLabelValues(summary.Job).Add(float64(summary.Processed))
	b.metrics.JobRowErrors.WithLabelValues(summary.Job).Add(float64(summary.Errors))
	b.metrics.JobDuration.WithLabelValues(summary.Job).Observe(summary.Duration().Seconds())

	event := logger.Info()
	if summary.Errors > 0 || summary.Interrupted {
		event = logger.Warn()
	}
	event.
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Bool("interrupted", summary.Interrupted).
		Dur("duration", summary.Duration()).
		Msg("job finished")
}

// lockedRowUpdate runs mutate on a locked ledger row and saves it. mutate returning
// false leaves the row unchanged and marks it skipped.
func lockedRowUpdate(
	ctx context.Context,
	retrier Retrier,
	txManager TransactionManager,
	ledgerRepo LedgerRepository,
	id string,
	now time.Time,
	mutate func(row *domain.LedgerRow) (bool, error),
) (*domain.LedgerRow, rowOutcome, error) {
	var (
		row     *domain.LedgerRow
		outcome rowOutcome
	)

	err := retrier.Retry(ctx, func() error {
		tx, err := txManager.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		row, err = ledgerRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		changed, err := mutate(row)
		if err != nil {
			return err
		}
		if !changed {
			outcome = rowSkipped
			return nil
		}

		row.UpdatedAt = now
		if err := ledgerRepo.Update(ctx, tx, row); err != nil {
			return err
		}

		outcome = rowProcessed
		return tx.Commit(ctx)
	})
	if err != nil {
		return nil, 0, err
	}

	return row, outcome, nil
}

func loadCategories(ctx context.Context, repo CategoryRepository) (map[string]*domain.LeaveCategory, error) {
	categories, err := repo.List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.LeaveCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return byID, nil
}
