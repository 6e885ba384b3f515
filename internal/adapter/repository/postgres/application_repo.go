package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

const applicationColumns = `id, employee_id, category_id, start_date, end_date, requested_days, reason, document_url, status, manager_comment, created_at, updated_at`

// ApplicationRepository implements usecase.ApplicationRepository.
type ApplicationRepository struct {
	db querier
}

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(pool *pgxpool.Pool) *ApplicationRepository {
	return newApplicationRepository(pool)
}

func newApplicationRepository(db querier) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create inserts an application.
func (r *ApplicationRepository) Create(ctx context.Context, tx usecase.Transaction, app *domain.LeaveApplication) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO leave_applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		app.ID, app.EmployeeID, app.CategoryID, app.StartDate, app.EndDate, app.RequestedDays,
		app.Reason, app.DocumentURL, string(app.Status), app.ManagerComment, app.CreatedAt, app.UpdatedAt)
	if hasCode(err, pgErrForeignKeyViolation) {
		return domain.ErrCategoryNotFound
	}
	return err
}

// GetByID retrieves an application by ID.
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*domain.LeaveApplication, error) {
	return getApplication(ctx, r.db, `SELECT `+applicationColumns+` FROM leave_applications WHERE id = $1`, id)
}

// GetByIDForUpdate retrieves an application with a FOR UPDATE lock.
func (r *ApplicationRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LeaveApplication, error) {
	q, err := pgxTx(tx)
	if err != nil {
		return nil, err
	}
	return getApplication(ctx, q, `SELECT `+applicationColumns+` FROM leave_applications WHERE id = $1 FOR UPDATE`, id)
}

// Update saves the status and manager comment of a locked application.
func (r *ApplicationRepository) Update(ctx context.Context, tx usecase.Transaction, app *domain.LeaveApplication) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `
		UPDATE leave_applications
		SET status = $2, manager_comment = $3, updated_at = $4
		WHERE id = $1`,
		app.ID, string(app.Status), app.ManagerComment, app.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrApplicationNotFound
	}
	return nil
}

// Delete removes an application.
func (r *ApplicationRepository) Delete(ctx context.Context, tx usecase.Transaction, id string) error {
	q, err := pgxTx(tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `DELETE FROM leave_applications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrApplicationNotFound
	}
	return nil
}

// List returns applications matching filter, newest first.
func (r *ApplicationRepository) List(ctx context.Context, filter usecase.ApplicationFilter) ([]*domain.LeaveApplication, error) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		where = append(where, fmt.Sprintf("employee_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + applicationColumns + ` FROM leave_applications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}

	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.getMany(ctx, query, args...)
}

// ListApprovedStarting returns approved applications whose start date is in [from, to].
func (r *ApplicationRepository) ListApprovedStarting(ctx context.Context, from, to time.Time) ([]*domain.LeaveApplication, error) {
	return r.getMany(ctx, `
		SELECT `+applicationColumns+` FROM leave_applications
		WHERE status = $1 AND start_date BETWEEN $2 AND $3
		ORDER BY start_date, id`,
		string(domain.ApplicationStatusApproved), from, to)
}

// CountByCategory counts the applications of a category.
func (r *ApplicationRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM leave_applications WHERE category_id = $1`, categoryID).Scan(&count)
	return count, err
}

func (r *ApplicationRepository) getMany(ctx context.Context, sql string, args ...any) ([]*domain.LeaveApplication, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.LeaveApplication, error) {
		return scanApplication(row)
	})
}

func getApplication(ctx context.Context, q querier, sql string, id string) (*domain.LeaveApplication, error) {
	app, err := scanApplication(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, err
	}
	return app, nil
}

func scanApplication(s scanner) (*domain.LeaveApplication, error) {
	var (
		app    domain.LeaveApplication
		status string
	)
	err := s.Scan(
		&app.ID,
		&app.EmployeeID,
		&app.CategoryID,
		&app.StartDate,
		&app.EndDate,
		&app.RequestedDays,
		&app.Reason,
		&app.DocumentURL,
		&status,
		&app.ManagerComment,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.Status = domain.ApplicationStatus(status)
	return &app, nil
}
