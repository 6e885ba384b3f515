// Package directory keeps a refreshable in-process snapshot of the employee directory.
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// SnapshotStore shares the last good snapshot between instances.
type SnapshotStore interface {
	Save(ctx context.Context, employees []*domain.Employee, fetchedAt time.Time) error
	Load(ctx context.Context) ([]*domain.Employee, time.Time, error)
}

// Options tunes a Service.
type Options struct {
	// MaxStaleness is the age after which the snapshot is no longer served.
	MaxStaleness time.Duration
	// MissRefreshInterval limits refreshes triggered by unknown ids.
	MissRefreshInterval time.Duration
}

// Service implements usecase.Directory over a periodically refreshed snapshot.
type Service struct {
	source  Source
	store   SnapshotStore
	opts    Options
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	byID        map[string]*domain.Employee
	all         []*domain.Employee
	fetchedAt   time.Time
	lastAttempt time.Time
}

// NewService creates a new Service. store and m may be nil.
func NewService(source Source, store SnapshotStore, opts Options, logger zerolog.Logger, m *metrics.Metrics) *Service {
	if opts.MaxStaleness <= 0 {
		opts.MaxStaleness = time.Hour
	}
	if opts.MissRefreshInterval <= 0 {
		opts.MissRefreshInterval = 30 * time.Second
	}
	return &Service{
		source:  source,
		store:   store,
		opts:    opts,
		logger:  logger.With().Str("component", "directory").Logger(),
		metrics: m,
		now:     time.Now,
	}
}

// Refresh fetches a new snapshot. Concurrent calls share one fetch. When the source is
// down a newer snapshot from the store is adopted, but the source error is still returned.
func (s *Service) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Service) refresh(ctx context.Context) error {
	s.mu.Lock()
	s.lastAttempt = s.now()
	s.mu.Unlock()

	employees, err := s.source.Fetch(ctx)
	if err != nil {
		s.observe("source", "error")
		s.logger.Warn().Err(err).Msg("directory refresh failed")
		if s.loadFromStore(ctx) {
			s.observe("store", "success")
		}
		return fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}

	fetchedAt := s.now()
	s.publish(employees, fetchedAt)
	s.observe("source", "success")
	s.logger.Info().Int("employees", len(employees)).Msg("directory refreshed")

	if s.store != nil {
		if err := s.store.Save(ctx, employees, fetchedAt); err != nil {
			s.logger.Warn().Err(err).Msg("failed to share directory snapshot")
		}
	}
	return nil
}

func (s *Service) loadFromStore(ctx context.Context) bool {
	if s.store == nil {
		return false
	}

	employees, fetchedAt, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("no shared directory snapshot")
		return false
	}

	s.mu.RLock()
	newer := fetchedAt.After(s.fetchedAt)
	s.mu.RUnlock()
	if !newer {
		return false
	}

	s.publish(employees, fetchedAt)
	s.logger.Info().Time("fetched_at", fetchedAt).Msg("adopted shared directory snapshot")
	return true
}

func (s *Service) publish(employees []*domain.Employee, fetchedAt time.Time) {
	byID := make(map[string]*domain.Employee, len(employees))
	all := make([]*domain.Employee, 0, len(employees))
	for _, e := range employees {
		cp := *e
		byID[cp.ID] = &cp
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	s.mu.Lock()
	s.byID = byID
	s.all = all
	s.fetchedAt = fetchedAt
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.DirectoryEmployees.Set(float64(len(all)))
	}
}

// LookupByID returns the employee with id. An unknown id triggers one rate-limited refresh
// before ErrEmployeeNotFound is returned.
func (s *Service) LookupByID(ctx context.Context, id string) (*domain.Employee, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}

	if e, ok := s.get(id); ok {
		return e, nil
	}

	if s.missRefreshAllowed() {
		if err := s.Refresh(ctx); err != nil {
			s.logger.Debug().Err(err).Str("employee_id", id).Msg("refresh on miss failed")
		}
		if e, ok := s.get(id); ok {
			return e, nil
		}
	}
	return nil, domain.ErrEmployeeNotFound
}

// LookupAll returns every employee ordered by id.
func (s *Service) LookupAll(ctx context.Context) ([]*domain.Employee, error) {
	if err := s.ensureFresh(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Employee, len(s.all))
	for i, e := range s.all {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

// FetchedAt returns when the current snapshot was fetched.
func (s *Service) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// Run refreshes the snapshot every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.Refresh(ctx)
		}
	}
}

func (s *Service) ensureFresh(ctx context.Context) error {
	if s.fresh() {
		return nil
	}

	err := s.Refresh(ctx)
	if s.fresh() {
		return nil
	}
	if err == nil || !errors.Is(err, domain.ErrDirectoryUnavailable) {
		err = fmt.Errorf("%w: snapshot older than %s", domain.ErrDirectoryUnavailable, s.opts.MaxStaleness)
	}
	return err
}

func (s *Service) fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID != nil && s.now().Sub(s.fetchedAt) <= s.opts.MaxStaleness
}

func (s *Service) get(id string) (*domain.Employee, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

func (s *Service) missRefreshAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Sub(s.lastAttempt) >= s.opts.MissRefreshInterval
}

func (s *Service) observe(source, status string) {
	if s.metrics != nil {
		s.metrics.DirectoryRefreshes.WithLabelValues(source, status).Inc()
	}
}
