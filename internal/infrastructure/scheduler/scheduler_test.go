package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/leaveledger/internal/domain"
)

type fakeJob struct {
	name     string
	calls    atomic.Int32
	deadline atomic.Value
	release  chan struct{}
	started  chan struct{}
	err      error
}

func (j *fakeJob) Name() string { return j.name }

func (j *fakeJob) Run(ctx context.Context, now time.Time) (*domain.JobSummary, error) {
	j.calls.Add(1)
	if d, ok := ctx.Deadline(); ok {
		j.deadline.Store(d)
	}
	if j.started != nil {
		j.started <- struct{}{}
	}
	if j.release != nil {
		<-j.release
	}
	if j.err != nil {
		return nil, j.err
	}
	return &domain.JobSummary{RunID: "run-1", Job: j.name, StartedAt: now, FinishedAt: now, Processed: 3}, nil
}

func newTestScheduler() *Scheduler {
	return New(Config{Timeout: time.Minute}, zerolog.Nop())
}

func TestScheduler_RunJob(t *testing.T) {
	s := newTestScheduler()
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	job := &fakeJob{name: domain.JobAccrual}
	require.NoError(t, s.Register("0 0 1 * *", job))

	before := time.Now()
	summary, err := s.RunJob(context.Background(), domain.JobAccrual)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, fixed, summary.StartedAt)

	deadline, ok := job.deadline.Load().(time.Time)
	require.True(t, ok, "run must carry the job timeout")
	assert.WithinDuration(t, before.Add(time.Minute), deadline, 5*time.Second)
}

func TestScheduler_UnknownJob(t *testing.T) {
	_, err := newTestScheduler().RunJob(context.Background(), "payroll")
	assert.ErrorIs(t, err, ErrUnknownJob)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestScheduler_RegisterErrors(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register("", &fakeJob{name: domain.JobExpiry}))

	assert.Error(t, s.Register("", &fakeJob{name: domain.JobExpiry}), "duplicate name")
	assert.Error(t, s.Register("not a cron spec", &fakeJob{name: domain.JobCarryover}))
	assert.Equal(t, []string{domain.JobExpiry}, s.Jobs())
}

func TestScheduler_RejectsOverlappingRuns(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: domain.JobCarryover, release: make(chan struct{}), started: make(chan struct{}, 1)}
	require.NoError(t, s.Register("", job))

	errs := make(chan error, 1)
	go func() {
		_, err := s.RunJob(context.Background(), domain.JobCarryover)
		errs <- err
	}()
	<-job.started

	_, err := s.RunJob(context.Background(), domain.JobCarryover)
	assert.ErrorIs(t, err, ErrJobRunning)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	close(job.release)
	require.NoError(t, <-errs)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestScheduler_JobError(t *testing.T) {
	s := newTestScheduler()
	boom := errors.New("listing failed")
	require.NoError(t, s.Register("", &fakeJob{name: domain.JobExpiry, err: boom}))

	_, err := s.RunJob(context.Background(), domain.JobExpiry)
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: domain.JobUpcomingLeave}
	require.NoError(t, s.Register("@every 1s", job))

	s.Start()
	require.Eventually(t, func() bool { return job.calls.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}

func TestScheduler_StopWaitsForOnDemandRuns(t *testing.T) {
	s := newTestScheduler()
	job := &fakeJob{name: domain.JobAccrual, release: make(chan struct{}), started: make(chan struct{}, 1)}
	require.NoError(t, s.Register("", job))

	errs := make(chan error, 1)
	go func() {
		_, err := s.RunJob(context.Background(), domain.JobAccrual)
		errs <- err
	}()
	<-job.started

	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Stop(short), context.DeadlineExceeded)

	_, err := s.RunJob(context.Background(), domain.JobAccrual)
	assert.ErrorIs(t, err, ErrStopped)

	close(job.release)
	require.NoError(t, <-errs)

	ctx, cancelWait := context.WithTimeout(context.Background(), time.Second)
	defer cancelWait()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(1), job.calls.Load())
}
