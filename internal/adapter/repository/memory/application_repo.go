package memory

import (
	"context"
	"sort"
	"time"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

// ApplicationRepository implements usecase.ApplicationRepository.
type ApplicationRepository struct {
	store *Store
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(store *Store) *ApplicationRepository {
	return &ApplicationRepository{store: store}
}

// Create stages a new application.
func (r *ApplicationRepository) Create(ctx context.Context, tx usecase.Transaction, app *domain.LeaveApplication) error {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return err
	}
	if err := mtx.lock(ctx, appLockKey(app.ID)); err != nil {
		return err
	}
	mtx.apps[app.ID] = cloneApplication(app)
	delete(mtx.deletedApps, app.ID)
	return nil
}

// GetByID retrieves a committed application.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.LeaveApplication, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	app, ok := r.store.applications[id]
	if !ok {
		return nil, domain.ErrApplicationNotFound
	}
	return cloneApplication(app), nil
}

// GetByIDForUpdate locks an application and returns its latest version.
func (r *ApplicationRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LeaveApplication, error) {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return nil, err
	}
	if err := mtx.lock(ctx, appLockKey(id)); err != nil {
		return nil, err
	}

	if mtx.deletedApps[id] {
		return nil, domain.ErrApplicationNotFound
	}
	if staged, ok := mtx.apps[id]; ok {
		return cloneApplication(staged), nil
	}
	return r.GetByID(ctx, id)
}

// Update stages a locked application for commit.
func (r *ApplicationRepository) Update(ctx context.Context, tx usecase.Transaction, app *domain.LeaveApplication) error {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return err
	}
	if err := mtx.lock(ctx, appLockKey(app.ID)); err != nil {
		return err
	}

	if _, staged := mtx.apps[app.ID]; !staged {
		if _, err := r.GetByID(ctx, app.ID); err != nil {
			return err
		}
	}
	mtx.apps[app.ID] = cloneApplication(app)
	return nil
}

// Delete stages the removal of an application.
func (r *ApplicationRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return err
	}
	if err := mtx.lock(ctx, appLockKey(id)); err != nil {
		return err
	}

	delete(mtx.apps, id)
	mtx.deletedApps[id] = true
	return nil
}

// List returns applications matching filter, newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter usecase.ApplicationFilter) ([]*domain.LeaveApplication, error) {
	apps := r.filter(func(a *domain.LeaveApplication) bool {
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			return false
		}
		if filter.Status != "" && a.Status != filter.Status {
			return false
		}
		return true
	})
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })

	if filter.Offset >= len(apps) {
		return []*domain.LeaveApplication{}, nil
	}
	apps = apps[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(apps) {
		apps = apps[:filter.Limit]
	}
	return apps, nil
}

// ListApprovedStarting returns approved applications starting in [from, to].
func (r *ApplicationRepository) ListApprovedStarting(ctx context.Context, from, to time.Time) ([]*domain.LeaveApplication, error) {
	apps := r.filter(func(a *domain.LeaveApplication) bool {
		return a.Status == domain.ApplicationStatusApproved &&
			!a.StartDate.Before(from) && !a.StartDate.After(to)
	})
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].StartDate.Before(apps[j].StartDate) })
	return apps, nil
}

// CountByCategory counts the applications of a category.
func (r *ApplicationRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	return len(r.filter(func(a *domain.LeaveApplication) bool { return a.CategoryID == categoryID })), nil
}

func (r *ApplicationRepository) filter(keep func(*domain.LeaveApplication) bool) []*domain.LeaveApplication {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.LeaveApplication
	for _, a := range r.store.applications {
		if keep(a) {
			out = append(out, cloneApplication(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
