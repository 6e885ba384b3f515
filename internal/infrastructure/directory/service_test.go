package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

type fakeSource struct {
	mu        sync.Mutex
	employees []*domain.Employee
	err       error
	calls     atomic.Int32
	block     chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context) ([]*domain.Employee, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.employees, nil
}

func (f *fakeSource) set(employees []*domain.Employee, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.employees = employees
	f.err = err
}

type memoryStore struct {
	employees []*domain.Employee
	fetchedAt time.Time
	saves     int
}

func (m *memoryStore) Save(_ context.Context, employees []*domain.Employee, fetchedAt time.Time) error {
	m.employees = employees
	m.fetchedAt = fetchedAt
	m.saves++
	return nil
}

func (m *memoryStore) Load(context.Context) ([]*domain.Employee, time.Time, error) {
	if m.employees == nil {
		return nil, time.Time{}, errors.New("empty")
	}
	return m.employees, m.fetchedAt, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var people = []*domain.Employee{
	{ID: "emp-2", Name: "Bob", Department: "sales", Role: domain.RoleStaff},
	{ID: "emp-1", Name: "Alice", Department: "eng", Role: domain.RoleStaff},
}

func newTestService(src Source, store SnapshotStore) (*Service, *clock, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	c := &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := NewService(src, store, Options{MaxStaleness: time.Hour, MissRefreshInterval: time.Minute}, zerolog.Nop(), m)
	s.now = c.now
	return s, c, m
}

func TestService_LazyRefreshOnFirstLookup(t *testing.T) {
	src := &fakeSource{employees: people}
	s, _, m := newTestService(src, nil)

	e, err := s.LookupByID(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", e.Name)

	all, err := s.LookupAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "emp-1", all[0].ID)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.DirectoryEmployees))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DirectoryRefreshes.WithLabelValues("source", "success")))
}

func TestService_ReturnsCopies(t *testing.T) {
	s, _, _ := newTestService(&fakeSource{employees: people}, nil)

	e, err := s.LookupByID(context.Background(), "emp-1")
	require.NoError(t, err)
	e.Name = "mutated"

	again, err := s.LookupByID(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", again.Name)
}

func TestService_UnknownIDRefreshesOnceWithinInterval(t *testing.T) {
	src := &fakeSource{employees: people}
	s, c, _ := newTestService(src, nil)
	require.NoError(t, s.Refresh(context.Background()))

	c.advance(2 * time.Minute)
	src.set(append([]*domain.Employee{{ID: "emp-3", Name: "Newcomer"}}, people...), nil)

	e, err := s.LookupByID(context.Background(), "emp-3")
	require.NoError(t, err)
	assert.Equal(t, "Newcomer", e.Name)
	assert.Equal(t, int32(2), src.calls.Load())

	_, err = s.LookupByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrEmployeeNotFound)
	assert.Equal(t, int32(2), src.calls.Load(), "miss refresh must be rate limited")
}

func TestService_StaleSnapshotIsUnavailable(t *testing.T) {
	src := &fakeSource{employees: people}
	s, c, _ := newTestService(src, nil)
	require.NoError(t, s.Refresh(context.Background()))

	src.set(nil, errors.New("connection refused"))
	c.advance(30 * time.Minute)

	_, err := s.LookupByID(context.Background(), "emp-1")
	require.NoError(t, err, "snapshot within staleness bound is still served")

	c.advance(31 * time.Minute)
	_, err = s.LookupByID(context.Background(), "emp-1")
	assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)

	_, err = s.LookupAll(context.Background())
	assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)
}

func TestService_FallsBackToSharedSnapshot(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	store := &memoryStore{}
	s, c, m := newTestService(src, store)

	store.employees = people
	store.fetchedAt = c.now().Add(-10 * time.Minute)

	err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrDirectoryUnavailable)

	e, err := s.LookupByID(context.Background(), "emp-2")
	require.NoError(t, err)
	assert.Equal(t, "Bob", e.Name)
	assert.Equal(t, store.fetchedAt, s.FetchedAt())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DirectoryRefreshes.WithLabelValues("store", "success")))
}

func TestService_PublishesToStore(t *testing.T) {
	store := &memoryStore{}
	s, c, _ := newTestService(&fakeSource{employees: people}, store)

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, c.now(), store.fetchedAt)
	assert.Len(t, store.employees, 2)
}

func TestService_ConcurrentRefreshesShareOneFetch(t *testing.T) {
	src := &fakeSource{employees: people, block: make(chan struct{})}
	s, _, _ := newTestService(src, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Refresh(context.Background())
		}()
	}

	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(src.block)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
}

func TestService_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{employees: people}
	s, _, _ := newTestService(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return src.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
