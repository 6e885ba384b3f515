package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

const ledgerColumns = `id, employee_id, category_id, balance, carried_over, excess_days, version, created_at, updated_at`

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db querier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return newLedgerRepository(pool)
}

func newLedgerRepository(db querier) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetByID retrieves a row by ID.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*domain.LedgerRow, error) {
	return r.getOne(ctx, r.db, `SELECT `+ledgerColumns+` FROM ledger_rows WHERE id = $1`, id)
}

// GetByEmployeeAndCategory retrieves the row of an employee and category.
func (r *LedgerRepository) GetByEmployeeAndCategory(ctx context.Context, employeeID, categoryID string) (*domain.LedgerRow, error) {
	return r.getOne(ctx, r.db,
		`SELECT `+ledgerColumns+` FROM ledger_rows WHERE employee_id = $1 AND category_id = $2`,
		employeeID, categoryID)
}

// GetByIDForUpdate retrieves a row with a FOR UPDATE lock.
func (r *LedgerRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerRow, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, q, `SELECT `+ledgerColumns+` FROM ledger_rows WHERE id = $1 FOR UPDATE`, id)
}

// GetForUpdate retrieves the row of an employee and category with a FOR UPDATE lock.
func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, employeeID, categoryID string) (*domain.LedgerRow, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return r.getOne(ctx, q,
		`SELECT `+ledgerColumns+` FROM ledger_rows WHERE employee_id = $1 AND category_id = $2 FOR UPDATE`,
		employeeID, categoryID)
}

// List returns every row.
func (r *LedgerRepository) List(ctx context.Context) ([]*domain.LedgerRow, error) {
	return r.getMany(ctx, `SELECT `+ledgerColumns+` FROM ledger_rows ORDER BY id`)
}

// ListByCategory returns the rows of a category ordered by employee.
func (r *LedgerRepository) ListByCategory(ctx context.Context, categoryID string) ([]*domain.LedgerRow, error) {
	return r.getMany(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_rows WHERE category_id = $1 ORDER BY employee_id`, categoryID)
}

// ListByEmployee returns the rows of an employee.
func (r *LedgerRepository) ListByEmployee(ctx context.Context, employeeID string) ([]*domain.LedgerRow, error) {
	return r.getMany(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_rows WHERE employee_id = $1 ORDER BY category_id`, employeeID)
}

// ListIDs returns the ids of every row.
func (r *LedgerRepository) ListIDs(ctx context.Context) ([]string, error) {
	return r.getIDs(ctx, `SELECT id FROM ledger_rows ORDER BY id`)
}

// ListWithExcess returns the ids of rows with pending excess days.
func (r *LedgerRepository) ListWithExcess(ctx context.Context) ([]string, error) {
	return r.getIDs(ctx, `SELECT id FROM ledger_rows WHERE excess_days > 0 ORDER BY id`)
}

// Update saves the mutable fields of a locked row and bumps its version.
func (r *LedgerRepository) Update(ctx context.Context, tx usecase.Transaction, row *domain.LedgerRow) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE ledger_rows
		SET balance = $2, carried_over = $3, excess_days = $4, version = version + 1, updated_at = $5
		WHERE id = $1`,
		row.ID, row.Balance, row.CarriedOver, row.ExcessDays, row.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLedgerRowNotFound
	}
	return nil
}

// CreateMissing inserts row unless the employee already has one for the category.
func (r *LedgerRepository) CreateMissing(ctx context.Context, tx usecase.Transaction, row *domain.LedgerRow) (bool, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return false, err
	}

	tag, err := q.Exec(ctx, `
		INSERT INTO ledger_rows (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)
		ON CONFLICT (employee_id, category_id) DO NOTHING`,
		row.ID, row.EmployeeID, row.CategoryID, row.Balance, row.CarriedOver, row.ExcessDays,
		row.CreatedAt, row.UpdatedAt)
	if err != nil {
		if hasCode(err, pgErrForeignKeyViolation) {
			return false, domain.ErrCategoryNotFound
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CountByCategory counts the rows of a category.
func (r *LedgerRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_rows WHERE category_id = $1`, categoryID).Scan(&count)
	return count, err
}

func (r *LedgerRepository) getOne(ctx context.Context, q querier, sql string, args ...any) (*domain.LedgerRow, error) {
	row, err := scanLedgerRow(q.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLedgerRowNotFound
		}
		return nil, err
	}
	return row, nil
}

func (r *LedgerRepository) getMany(ctx context.Context, sql string, args ...any) ([]*domain.LedgerRow, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.LedgerRow, error) {
		return scanLedgerRow(row)
	})
}

func (r *LedgerRepository) getIDs(ctx context.Context, sql string) ([]string, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLedgerRow(s scanner) (*domain.LedgerRow, error) {
	var row domain.LedgerRow
	err := s.Scan(
		&row.ID,
		&row.EmployeeID,
		&row.CategoryID,
		&row.Balance,
		&row.CarriedOver,
		&row.ExcessDays,
		&row.Version,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &row, nil
}
