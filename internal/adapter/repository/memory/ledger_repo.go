package memory

import (
	"context"
	"sort"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

// GetByID retrieves a committed row.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*domain.LedgerRow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row, ok := r.store.rows[id]
	if !ok {
		return nil, domain.ErrLedgerRowNotFound
	}
	return cloneRow(row), nil
}

// GetByEmployeeAndCategory retrieves the committed row of an employee and category.
func (r *LedgerRepository) GetByEmployeeAndCategory(ctx context.Context, employeeID, categoryID string) (*domain.LedgerRow, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.rowByPair[pairKey{employeeID, categoryID}]
	if !ok {
		return nil, domain.ErrLedgerRowNotFound
	}
	return cloneRow(r.store.rows[id]), nil
}

// GetByIDForUpdate locks a row and returns its latest version.
func (r *LedgerRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerRow, error) {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return nil, err
	}

	if err := mtx.lock(ctx, rowLockKey(id)); err != nil {
		return nil, err
	}

	if staged, ok := mtx.rows[id]; ok {
		return cloneRow(staged), nil
	}
	return r.GetByID(ctx, id)
}

// GetForUpdate locks the row of an employee and category.
func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, employeeID, categoryID string) (*domain.LedgerRow, error) {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return nil, err
	}

	for id, staged := range mtx.rows {
		if staged.EmployeeID == employeeID && staged.CategoryID == categoryID {
			return r.GetByIDForUpdate(ctx, tx, id)
		}
	}

	r.store.mu.RLock()
	id, ok := r.store.rowByPair[pairKey{employeeID, categoryID}]
	r.store.mu.RUnlock()
	if !ok {
		return nil, domain.ErrLedgerRowNotFound
	}

	return r.GetByIDForUpdate(ctx, tx, id)
}

// List returns every committed row.
func (r *LedgerRepository) List(ctx context.Context) ([]*domain.LedgerRow, error) {
	return r.filter(func(*domain.LedgerRow) bool { return true }), nil
}

// ListByCategory returns the rows of a category ordered by employee.
func (r *LedgerRepository) ListByCategory(ctx context.Context, categoryID string) ([]*domain.LedgerRow, error) {
	rows := r.filter(func(row *domain.LedgerRow) bool { return row.CategoryID == categoryID })
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].EmployeeID < rows[j].EmployeeID })
	return rows, nil
}

// ListByEmployee returns the rows of an employee.
func (r *LedgerRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*domain.LedgerRow, error) {
	return r.filter(func(row *domain.LedgerRow) bool { return row.EmployeeID == employeeID }), nil
}

// ListIDs returns the ids of every row.
func (r *LedgerRepository) ListIDs(ctx context.Context) ([]string, error) {
	return ids(r.filter(func(*domain.LedgerRow) bool { return true })), nil
}

// ListWithExcess returns the ids of rows with pending excess days.
func (r *LedgerRepository) ListWithExcess(ctx context.Context) ([]string, error) {
	return ids(r.filter(func(row *domain.LedgerRow) bool { return row.ExcessDays.IsPositive() })), nil
}

// Update stages a locked row for commit.
func (r *LedgerRepository) Update(ctx context.Context, tx usecase.Transaction, row *domain.LedgerRow) error {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return err
	}
	if !mtx.held[rowLockKey(row.ID)] {
		if err := mtx.lock(ctx, rowLockKey(row.ID)); err != nil {
			return err
		}
	}

	if _, staged := mtx.rows[row.ID]; !staged {
		r.store.mu.RLock()
		_, exists := r.store.rows[row.ID]
		r.store.mu.RUnlock()
		if !exists {
			return domain.ErrLedgerRowNotFound
		}
	}

	mtx.rows[row.ID] = cloneRow(row)
	return nil
}

// CreateMissing stages row unless the employee already has a row for the category.
func (r *LedgerRepository) CreateMissing(ctx context.Context, tx usecase.Transaction, row *domain.LedgerRow) (bool, error) {
	mtx, err := txFrom(tx, r.store)
	if err != nil {
		return false, err
	}

	if err := mtx.lock(ctx, pairLockKey(row.EmployeeID, row.CategoryID)); err != nil {
		return false, err
	}

	for _, staged := range mtx.rows {
		if staged.EmployeeID == row.EmployeeID && staged.CategoryID == row.CategoryID {
			return false, nil
		}
	}

	r.store.mu.RLock()
	_, exists := r.store.rowByPair[pairKey{row.EmployeeID, row.CategoryID}]
	r.store.mu.RUnlock()
	if exists {
		return false, nil
	}

	if err := mtx.lock(ctx, rowLockKey(row.ID)); err != nil {
		return false, err
	}
	mtx.rows[row.ID] = cloneRow(row)
	return true, nil
}

// CountByCategory counts the rows of a category.
func (r *LedgerRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	return len(r.filter(func(row *domain.LedgerRow) bool { return row.CategoryID == categoryID })), nil
}

func (r *LedgerRepository) filter(keep func(*domain.LedgerRow) bool) []*domain.LedgerRow {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.LedgerRow
	for _, row := range r.store.rows {
		if keep(row) {
			out = append(out, cloneRow(row))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func ids(rows []*domain.LedgerRow) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}
