package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// UpcomingLeaveJob reminds reviewers of approved leave starting soon.
type UpcomingLeaveJob struct {
	appRepo      ApplicationRepository
	categoryRepo CategoryRepository
	directory    Directory
	notifier     Notifier
	runner       batchRunner
	daysAhead    int
}

// NewUpcomingLeaveJob creates a new UpcomingLeaveJob.
func NewUpcomingLeaveJob(
	appRepo ApplicationRepository,
	categoryRepo CategoryRepository,
	directory Directory,
	notifier Notifier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
	opts JobOptions,
) *UpcomingLeaveJob {
	opts = opts.withDefaults()
	return &UpcomingLeaveJob{
		appRepo:      appRepo,
		categoryRepo: categoryRepo,
		directory:    directory,
		notifier:     notifier,
		runner:       newBatchRunner(opts.Parallelism, metrics, logger),
		daysAhead:    opts.ReminderDaysAhead,
	}
}

// Name implements Job.
func (j *UpcomingLeaveJob) Name() string { return domain.JobUpcomingLeave }

// ReminderWindow returns the start dates covered by a run at now: from tomorrow
// through daysAhead days after tomorrow.
func (j *UpcomingLeaveJob) ReminderWindow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.UTC().Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	return tomorrow, tomorrow.AddDate(0, 0, j.daysAhead)
}

// Run implements Job.
func (j *UpcomingLeaveJob) Run(ctx context.Context, now time.Time) (*domain.JobSummary, error) {
	from, to := j.ReminderWindow(now)

	apps, err := j.appRepo.ListApprovedStarting(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list upcoming leave: %w", err)
	}

	everyone, err := j.directory.LookupAll(ctx)
	if err != nil {
		return nil, err
	}
	employees := make(map[string]*domain.Employee, len(everyone))
	for _, e := range everyone {
		employees[e.ID] = e
	}

	categories, err := loadCategories(ctx, j.categoryRepo)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	byID := make(map[string]*domain.LeaveApplication, len(apps))
	ids := make([]string, 0, len(apps))
	for _, a := range apps {
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}

	return j.runner.run(ctx, j.Name(), ids, func(ctx context.Context, id string) (rowOutcome, error) {
		app := byID[id]

		employee := employees[app.EmployeeID]
		if employee == nil {
			return rowSkipped, nil
		}

		recipients := domain.ReviewersFor(employee, everyone)
		if len(recipients) == 0 {
			return rowSkipped, nil
		}

		j.notifier.Notify(ctx, recipients,
			upcomingLeaveMessage(employee, categoryName(categories, app.CategoryID), app))
		return rowProcessed, nil
	}), nil
}
