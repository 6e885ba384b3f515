// Package scheduler triggers ledger jobs on cron schedules and on demand.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

var (
	// ErrUnknownJob is returned for a job name that was never registered.
	ErrUnknownJob = fmt.Errorf("job %w", domain.ErrNotFound)
	// ErrJobRunning is returned when a job is triggered while a run is in progress.
	ErrJobRunning = fmt.Errorf("%w: job is already running", domain.ErrInvalidState)
	// ErrStopped is returned for runs requested after Stop.
	ErrStopped = fmt.Errorf("%w: scheduler is stopped", domain.ErrInvalidState)
)

// Config for Scheduler.
type Config struct {
	// Timeout bounds every run. Rows already started finish on their own deadline.
	Timeout  time.Duration
	Location *time.Location
}

type registration struct {
	job     usecase.Job
	spec    string
	running sync.Mutex
}

// Scheduler owns the registered jobs.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	jobs     map[string]*registration
	stopping bool
	inflight sync.WaitGroup
}

// New creates a new Scheduler.
func New(cfg Config, logger zerolog.Logger) *Scheduler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	logger = logger.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		timeout: cfg.Timeout,
		logger:  logger,
		now:     time.Now,
		jobs:    make(map[string]*registration),
	}
}

// Register adds job. A non-empty spec schedules it with a standard five-field cron
// expression; an empty spec registers it for on-demand runs only.
func (s *Scheduler) Register(spec string, job usecase.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.Name()]; ok {
		return fmt.Errorf("job %q registered twice", job.Name())
	}

	reg := &registration{job: job, spec: spec}
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { s.scheduled(reg) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
	}
	s.jobs[job.Name()] = reg

	s.logger.Info().Str("job", job.Name()).Str("schedule", spec).Msg("job registered")
	return nil
}

// Jobs returns the registered job names in order.
func (s *Scheduler) Jobs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunJob runs the named job now.
func (s *Scheduler) RunJob(ctx context.Context, name string) (*domain.JobSummary, error) {
	s.mu.RLock()
	reg, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, reg)
}

func (s *Scheduler) scheduled(reg *registration) {
	if _, err := s.run(context.Background(), reg); err != nil {
		s.logger.Error().Err(err).Str("job", reg.job.Name()).Msg("scheduled job failed")
	}
}

func (s *Scheduler) run(ctx context.Context, reg *registration) (*domain.JobSummary, error) {
	if !s.track() {
		return nil, ErrStopped
	}
	defer s.inflight.Done()

	if !reg.running.TryLock() {
		return nil, ErrJobRunning
	}
	defer reg.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := reg.job.Run(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", reg.job.Name(), err)
	}

	s.logger.Info().
		Str("job", summary.Job).
		Str("run_id", summary.RunID).
		Int("processed", summary.Processed).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Bool("interrupted", summary.Interrupted).
		Dur("duration", summary.Duration()).
		Msg(summary.String())
	return summary, nil
}

// Start begins firing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("entries", len(s.cron.Entries())).Msg("scheduler started")
}

// track counts a run as in flight unless Stop has been called.
func (s *Scheduler) track() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopping {
		return false
	}
	s.inflight.Add(1)
	return true
}

// Stop stops firing jobs and refuses new runs. It then waits, until ctx is done,
// for running jobs started by cron or through RunJob.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
