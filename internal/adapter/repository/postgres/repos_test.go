package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

var (
	ledgerCols      = []string{"id", "employee_id", "category_id", "balance", "carried_over", "excess_days", "version", "created_at", "updated_at"}
	categoryCols    = []string{"id", "name", "default_annual_allocation", "accrual_rate", "max_carryover_days", "active", "created_at", "updated_at"}
	applicationCols = []string{"id", "employee_id", "category_id", "start_date", "end_date", "requested_days", "reason", "document_url", "status", "manager_comment", "created_at", "updated_at"}
	fixedTime       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func beginTx(t *testing.T, mock pgxmock.PgxPoolIface) usecase.Transaction {
	t.Helper()
	mock.ExpectBegin()
	tx, err := newTxManagerWithPool(mock).Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

func TestLedgerRepository_GetByIDForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := newLedgerRepository(mock)
	tx := beginTx(t, mock)

	mock.ExpectQuery(`FROM ledger_rows WHERE id = \$1 FOR UPDATE`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows(ledgerCols).AddRow(
			"r1", "emp-1", "cat-1", decimal.NewFromInt(15), decimal.NewFromInt(5), decimal.NewFromInt(10),
			int64(3), fixedTime, fixedTime))

	row, err := repo.GetByIDForUpdate(context.Background(), tx, "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !row.Balance.Equal(decimal.NewFromInt(15)) || !row.ExcessDays.Equal(decimal.NewFromInt(10)) || row.Version != 3 {
		t.Fatalf("unexpected row %+v", row)
	}

	assertExpectations(t, mock)
}

func TestLedgerRepository_GetForUpdateNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := newLedgerRepository(mock)
	tx := beginTx(t, mock)

	mock.ExpectQuery(`FROM ledger_rows WHERE employee_id = \$1 AND category_id = \$2 FOR UPDATE`).
		WithArgs("emp-1", "cat-1").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetForUpdate(context.Background(), tx, "emp-1", "cat-1")
	if !errors.Is(err, domain.ErrLedgerRowNotFound) {
		t.Fatalf("expected ErrLedgerRowNotFound, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestLedgerRepository_Update(t *testing.T) {
	mock := newMockPool(t)
	repo := newLedgerRepository(mock)
	tx := beginTx(t, mock)

	row := &domain.LedgerRow{ID: "r1", Balance: decimal.NewFromInt(5), UpdatedAt: fixedTime}

	mock.ExpectExec(`UPDATE ledger_rows SET balance = \$2, carried_over = \$3, excess_days = \$4, version = version \+ 1`).
		WithArgs("r1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), fixedTime).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE ledger_rows`).
		WithArgs("gone", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.Update(context.Background(), tx, row); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row.ID = "gone"
	if err := repo.Update(context.Background(), tx, row); !errors.Is(err, domain.ErrLedgerRowNotFound) {
		t.Fatalf("expected ErrLedgerRowNotFound, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestLedgerRepository_CreateMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := newLedgerRepository(mock)
	tx := beginTx(t, mock)

	row := &domain.LedgerRow{ID: "r1", EmployeeID: "emp-1", CategoryID: "cat-1", Balance: decimal.NewFromInt(20)}

	mock.ExpectExec(`ON CONFLICT \(employee_id, category_id\) DO NOTHING`).
		WithArgs("r1", "emp-1", "cat-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ON CONFLICT \(employee_id, category_id\) DO NOTHING`).
		WithArgs("r1", "emp-1", "cat-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(`INSERT INTO ledger_rows`).
		WithArgs("r1", "emp-1", "cat-1", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	created, err := repo.CreateMissing(context.Background(), tx, row)
	if err != nil || !created {
		t.Fatalf("expected row to be created, got %v (%v)", created, err)
	}

	created, err = repo.CreateMissing(context.Background(), tx, row)
	if err != nil || created {
		t.Fatalf("expected existing row to be kept, got %v (%v)", created, err)
	}

	if _, err := repo.CreateMissing(context.Background(), tx, row); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestLedgerRepository_ListWithExcess(t *testing.T) {
	mock := newMockPool(t)
	repo := newLedgerRepository(mock)

	mock.ExpectQuery(`SELECT id FROM ledger_rows WHERE excess_days > 0`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("r1").AddRow("r7"))

	ids, err := repo.ListWithExcess(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "r1" || ids[1] != "r7" {
		t.Fatalf("unexpected ids %v", ids)
	}

	assertExpectations(t, mock)
}

func TestLedgerRepository_ListByCategory(t *testing.T) {
	mock := newMockPool(t)
	repo := newLedgerRepository(mock)

	mock.ExpectQuery(`FROM ledger_rows WHERE category_id = \$1 ORDER BY employee_id`).
		WithArgs("cat-1").
		WillReturnRows(pgxmock.NewRows(ledgerCols).
			AddRow("r1", "emp-1", "cat-1", decimal.NewFromInt(1), decimal.Zero, decimal.Zero, int64(1), fixedTime, fixedTime).
			AddRow("r2", "emp-2", "cat-1", decimal.NewFromInt(2), decimal.Zero, decimal.Zero, int64(1), fixedTime, fixedTime))

	rows, err := repo.ListByCategory(context.Background(), "cat-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || rows[1].EmployeeID != "emp-2" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	assertExpectations(t, mock)
}

func TestLedgerRepository_RejectsForeignTransaction(t *testing.T) {
	mock := newMockPool(t)
	repo := newLedgerRepository(mock)

	if _, err := repo.GetByIDForUpdate(context.Background(), foreignTx{}, "r1"); !errors.Is(err, ErrForeignTransaction) {
		t.Fatalf("expected ErrForeignTransaction, got %v", err)
	}
}

func TestCategoryRepository_CreateDuplicateName(t *testing.T) {
	mock := newMockPool(t)
	repo := newCategoryRepository(mock)

	mock.ExpectExec(`INSERT INTO leave_categories`).
		WithArgs("c1", "Annual", pgxmock.AnyArg(), pgxmock.AnyArg(), 5, true, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := repo.Create(context.Background(), &domain.LeaveCategory{ID: "c1", Name: "Annual", MaxCarryoverDays: 5, Active: true})
	if !errors.Is(err, domain.ErrCategoryNameTaken) {
		t.Fatalf("expected ErrCategoryNameTaken, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestCategoryRepository_GetByName(t *testing.T) {
	mock := newMockPool(t)
	repo := newCategoryRepository(mock)

	mock.ExpectQuery(`FROM leave_categories WHERE name = \$1`).
		WithArgs("Annual").
		WillReturnRows(pgxmock.NewRows(categoryCols).AddRow(
			"c1", "Annual", decimal.NewFromInt(20), decimal.RequireFromString("1.67"), 5, true, fixedTime, fixedTime))
	mock.ExpectQuery(`FROM leave_categories WHERE name = \$1`).
		WithArgs("Sick").
		WillReturnError(pgx.ErrNoRows)

	c, err := repo.GetByName(context.Background(), "Annual")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.ID != "c1" || c.MaxCarryoverDays != 5 || !c.AccrualRate.Equal(decimal.RequireFromString("1.67")) {
		t.Fatalf("unexpected category %+v", c)
	}

	if _, err := repo.GetByName(context.Background(), "Sick"); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestCategoryRepository_Delete(t *testing.T) {
	mock := newMockPool(t)
	repo := newCategoryRepository(mock)

	mock.ExpectExec(`DELETE FROM leave_categories`).WithArgs("c1").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	mock.ExpectExec(`DELETE FROM leave_categories`).WithArgs("c2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM leave_categories`).WithArgs("c3").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := repo.Delete(context.Background(), "c1"); !errors.Is(err, domain.ErrCategoryInUse) {
		t.Fatalf("expected ErrCategoryInUse, got %v", err)
	}
	if err := repo.Delete(context.Background(), "c2"); !errors.Is(err, domain.ErrCategoryNotFound) {
		t.Fatalf("expected ErrCategoryNotFound, got %v", err)
	}
	if err := repo.Delete(context.Background(), "c3"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, mock)
}

func TestApplicationRepository_GetByIDForUpdate(t *testing.T) {
	mock := newMockPool(t)
	repo := newApplicationRepository(mock)
	tx := beginTx(t, mock)

	reason := "family trip"
	start := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM leave_applications WHERE id = \$1 FOR UPDATE`).
		WithArgs("a1").
		WillReturnRows(pgxmock.NewRows(applicationCols).AddRow(
			"a1", "emp-1", "cat-1", start, end, decimal.NewFromInt(5), &reason, nil, "Approved", nil, fixedTime, fixedTime))

	app, err := repo.GetByIDForUpdate(context.Background(), tx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.Status != domain.ApplicationStatusApproved {
		t.Fatalf("expected Approved, got %s", app.Status)
	}
	if app.Reason == nil || *app.Reason != reason || app.DocumentURL != nil {
		t.Fatalf("unexpected optional fields %+v", app)
	}
	if !app.StartDate.Equal(start) || !app.RequestedDays.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected application %+v", app)
	}

	assertExpectations(t, mock)
}

func TestApplicationRepository_ListBuildsFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter usecase.ApplicationFilter
		query  string
		args   []any
	}{
		{
			name:   "no filter",
			filter: usecase.ApplicationFilter{Limit: 50},
			query:  `FROM leave_applications ORDER BY created_at DESC, id DESC LIMIT \$1 OFFSET \$2`,
			args:   []any{50, 0},
		},
		{
			name:   "employee and status",
			filter: usecase.ApplicationFilter{EmployeeID: "emp-1", Status: domain.ApplicationStatusPending, Limit: 10, Offset: 20},
			query:  `WHERE employee_id = \$1 AND status = \$2 ORDER BY created_at DESC, id DESC LIMIT \$3 OFFSET \$4`,
			args:   []any{"emp-1", "Pending", 10, 20},
		},
		{
			name:   "status only",
			filter: usecase.ApplicationFilter{Status: domain.ApplicationStatusRejected, Limit: 5},
			query:  `WHERE status = \$1 ORDER BY`,
			args:   []any{"Rejected", 5, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			repo := newApplicationRepository(mock)

			mock.ExpectQuery(tt.query).WithArgs(tt.args...).WillReturnRows(pgxmock.NewRows(applicationCols))

			apps, err := repo.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(apps) != 0 {
				t.Fatalf("expected empty result, got %d", len(apps))
			}

			assertExpectations(t, mock)
		})
	}
}

func TestApplicationRepository_DeleteMissing(t *testing.T) {
	mock := newMockPool(t)
	repo := newApplicationRepository(mock)
	tx := beginTx(t, mock)

	mock.ExpectExec(`DELETE FROM leave_applications`).WithArgs("a1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), tx, "a1"); !errors.Is(err, domain.ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}

	assertExpectations(t, mock)
}

func TestNotificationRepository_MarkReadAndCount(t *testing.T) {
	mock := newMockPool(t)
	repo := newNotificationRepository(mock)

	mock.ExpectExec(`UPDATE notifications SET read = TRUE`).WithArgs("n1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE notifications SET read = TRUE`).WithArgs("n2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND NOT read`).WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))

	if err := repo.MarkRead(context.Background(), "n1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.MarkRead(context.Background(), "n2"); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}

	count, err := repo.CountUnread(context.Background(), "emp-1")
	if err != nil || count != 4 {
		t.Fatalf("expected 4 unread, got %d (%v)", count, err)
	}

	assertExpectations(t, mock)
}

func TestNotificationRepository_ListByUser(t *testing.T) {
	mock := newMockPool(t)
	repo := newNotificationRepository(mock)

	mock.ExpectQuery(`FROM notifications WHERE user_id = \$1 AND \(NOT \$2 OR NOT read\)`).
		WithArgs("emp-1", true, 10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "message", "read", "created_at"}).
			AddRow("n2", "emp-1", "hello", false, fixedTime))

	list, err := repo.ListByUser(context.Background(), "emp-1", true, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 || list[0].Message != "hello" {
		t.Fatalf("unexpected notifications %+v", list)
	}

	assertExpectations(t, mock)
}
