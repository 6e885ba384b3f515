package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/leaveledger/internal/domain"
)

const categoryColumns = `id, name, default_annual_allocation, accrual_rate, max_carryover_days, active, created_at, updated_at`

// CategoryRepository implements usecase.CategoryRepository.
type CategoryRepository struct {
	db querier
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return newCategoryRepository(pool)
}

func newCategoryRepository(db querier) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// Create inserts a category.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.LeaveCategory) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO leave_categories (`+categoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.DefaultAnnualAllocation, c.AccrualRate, c.MaxCarryoverDays, c.Active,
		c.CreatedAt, c.UpdatedAt)
	if hasCode(err, pgErrUniqueViolation) {
		return domain.ErrCategoryNameTaken
	}
	return err
}

// Update saves every field of a category.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.LeaveCategory) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leave_categories
		SET name = $2, default_annual_allocation = $3, accrual_rate = $4, max_carryover_days = $5,
			active = $6, updated_at = $7
		WHERE id = $1`,
		c.ID, c.Name, c.DefaultAnnualAllocation, c.AccrualRate, c.MaxCarryoverDays, c.Active, c.UpdatedAt)
	if err != nil {
		if hasCode(err, pgErrUniqueViolation) {
			return domain.ErrCategoryNameTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// Delete removes a category. Rows or applications still referencing it make this fail
// with ErrCategoryInUse.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM leave_categories WHERE id = $1`, id)
	if err != nil {
		if hasCode(err, pgErrForeignKeyViolation) {
			return domain.ErrCategoryInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// GetByID retrieves a category by ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.LeaveCategory, error) {
	return r.getOne(ctx, `SELECT `+categoryColumns+` FROM leave_categories WHERE id = $1`, id)
}

// GetByName retrieves a category by its exact name.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*domain.LeaveCategory, error) {
	return r.getOne(ctx, `SELECT `+categoryColumns+` FROM leave_categories WHERE name = $1`, name)
}

// List returns every category ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]*domain.LeaveCategory, error) {
	rows, err := r.db.Query(ctx, `SELECT `+categoryColumns+` FROM leave_categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.LeaveCategory, error) {
		return scanCategory(row)
	})
}

func (r *CategoryRepository) getOne(ctx context.Context, sql string, arg string) (*domain.LeaveCategory, error) {
	c, err := scanCategory(r.db.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return c, nil
}

func scanCategory(s scanner) (*domain.LeaveCategory, error) {
	var c domain.LeaveCategory
	err := s.Scan(
		&c.ID,
		&c.Name,
		&c.DefaultAnnualAllocation,
		&c.AccrualRate,
		&c.MaxCarryoverDays,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
