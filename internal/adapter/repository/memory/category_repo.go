package memory

import (
	"context"
	"sort"

	"github.com/iho/leaveledger/internal/domain"
)

// CategoryRepository implements usecase.CategoryRepository.
type CategoryRepository struct {
	store *Store
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(store *Store) *CategoryRepository {
	return &CategoryRepository{store: store}
}

// Create stores a new category. Names are unique.
func (r *CategoryRepository) Create(ctx context.Context, category *domain.LeaveCategory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.nameTakenLocked(category.Name, category.ID) {
		return domain.ErrCategoryNameTaken
	}
	r.store.categories[category.ID] = cloneCategory(category)
	return nil
}

// Update replaces a stored category.
func (r *CategoryRepository) Update(ctx context.Context, category *domain.LeaveCategory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.categories[category.ID]; !ok {
		return domain.ErrCategoryNotFound
	}
	if r.nameTakenLocked(category.Name, category.ID) {
		return domain.ErrCategoryNameTaken
	}
	r.store.categories[category.ID] = cloneCategory(category)
	return nil
}

// Delete removes a category.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(r.store.categories, id)
	return nil
}

// GetByID retrieves a category by ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.LeaveCategory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.categories[id]
	if !ok {
		return nil, domain.ErrCategoryNotFound
	}
	return cloneCategory(c), nil
}

// GetByName retrieves a category by its exact name.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*domain.LeaveCategory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, c := range r.store.categories {
		if c.Name == name {
			return cloneCategory(c), nil
		}
	}
	return nil, domain.ErrCategoryNotFound
}

// List returns every category ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]*domain.LeaveCategory, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]*domain.LeaveCategory, 0, len(r.store.categories))
	for _, c := range r.store.categories {
		out = append(out, cloneCategory(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *CategoryRepository) nameTakenLocked(name, selfID string) bool {
	for _, c := range r.store.categories {
		if c.Name == name && c.ID != selfID {
			return true
		}
	}
	return false
}
