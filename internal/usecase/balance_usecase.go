package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// BalanceUseCase handles direct ledger row maintenance.
type BalanceUseCase struct {
	txManager    TransactionManager
	retrier      Retrier
	ledgerRepo   LedgerRepository
	categoryRepo CategoryRepository
	directory    Directory
	idGen        IDGenerator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewBalanceUseCase creates a new BalanceUseCase.
func NewBalanceUseCase(
	txManager TransactionManager,
	retrier Retrier,
	ledgerRepo LedgerRepository,
	categoryRepo CategoryRepository,
	directory Directory,
	idGen IDGenerator,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *BalanceUseCase {
	return &BalanceUseCase{
		txManager:    txManager,
		retrier:      retrierOrDefault(retrier),
		ledgerRepo:   ledgerRepo,
		categoryRepo: categoryRepo,
		directory:    directory,
		idGen:        idGen,
		metrics:      metrics,
		logger:       logger.With().Str("component", "balances").Logger(),
	}
}

// AdjustBalanceInput represents an admin override of a ledger row.
type AdjustBalanceInput struct {
	LedgerRowID string
	Balance     *decimal.Decimal
	CarriedOver *decimal.Decimal
}

// AdjustBalance overrides the balance and/or carried over days of a row under its lock.
func (uc *BalanceUseCase) AdjustBalance(ctx context.Context, input AdjustBalanceInput) (*domain.LedgerRow, error) {
	if err := domain.ValidateID("ledger row id", input.LedgerRowID); err != nil {
		return nil, err
	}
	if input.Balance != nil {
		if err := domain.ValidateDays("balance", *input.Balance); err != nil {
			return nil, err
		}
	}
	if input.CarriedOver != nil {
		if err := domain.ValidateDays("carried over", *input.CarriedOver); err != nil {
			return nil, err
		}
	}

	var row *domain.LedgerRow
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		row, err = uc.adjustTx(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.BalanceOperations.WithLabelValues("adjust").Inc()
	uc.logger.Info().
		Str("ledger_row_id", row.ID).
		Str("employee_id", row.EmployeeID).
		Str("balance", row.Balance.String()).
		Str("carried_over", row.CarriedOver.String()).
		Msg("ledger row adjusted")

	return row, nil
}

func (uc *BalanceUseCase) adjustTx(ctx context.Context, input AdjustBalanceInput) (*domain.LedgerRow, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	row, err := uc.ledgerRepo.GetByIDForUpdate(txCtx, tx, input.LedgerRowID)
	if err != nil {
		return nil, err
	}

	category, err := uc.categoryRepo.GetByID(txCtx, row.CategoryID)
	if err != nil {
		return nil, err
	}

	if err := row.Adjust(input.Balance, input.CarriedOver, category.Cap()); err != nil {
		return nil, err
	}
	row.UpdatedAt = time.Now().UTC()

	if err := uc.ledgerRepo.Update(txCtx, tx, row); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return row, nil
}

// InitializeBalances creates the missing rows of an employee for every category.
// Existing rows are left untouched; only the created rows are returned.
func (uc *BalanceUseCase) InitializeBalances(ctx context.Context, employeeID string) ([]*domain.LedgerRow, error) {
	if err := domain.ValidateID("employee id", employeeID); err != nil {
		return nil, err
	}

	if _, err := uc.directory.LookupByID(ctx, employeeID); err != nil {
		return nil, err
	}

	categories, err := uc.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	pairs := make([]rowSeed, 0, len(categories))
	for _, c := range categories {
		pairs = append(pairs, rowSeed{employeeID: employeeID, category: c})
	}

	created, err := uc.createMissing(ctx, pairs)
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Str("employee_id", employeeID).Int("created", len(created)).Msg("employee balances initialized")
	return created, nil
}

// InitializeCategory creates the missing rows of a category for every directory employee.
func (uc *BalanceUseCase) InitializeCategory(ctx context.Context, categoryID string) ([]*domain.LedgerRow, error) {
	category, err := uc.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	employees, err := uc.directory.LookupAll(ctx)
	if err != nil {
		return nil, err
	}

	pairs := make([]rowSeed, 0, len(employees))
	for _, e := range employees {
		pairs = append(pairs, rowSeed{employeeID: e.ID, category: category})
	}

	created, err := uc.createMissing(ctx, pairs)
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Str("category_id", categoryID).Int("created", len(created)).Msg("category balances initialized")
	return created, nil
}

type rowSeed struct {
	employeeID string
	category   *domain.LeaveCategory
}

func (uc *BalanceUseCase) createMissing(ctx context.Context, seeds []rowSeed) ([]*domain.LedgerRow, error) {
	if len(seeds) == 0 {
		return nil, nil
	}

	var created []*domain.LedgerRow
	err := uc.retrier.Retry(ctx, func() error {
		created = created[:0]

		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := uc.txManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		now := time.Now().UTC()
		for _, s := range seeds {
			row := domain.NewLedgerRow(uc.idGen.Generate(), s.employeeID, s.category, now)

			ok, err := uc.ledgerRepo.CreateMissing(txCtx, tx, row)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, row)
			}
		}

		return tx.Commit(txCtx)
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.BalanceOperations.WithLabelValues("initialize").Add(float64(len(created)))
	return created, nil
}

// GetForEmployee returns every row of an employee.
func (uc *BalanceUseCase) GetForEmployee(ctx context.Context, employeeID string) ([]*domain.LedgerRow, error) {
	if err := domain.ValidateID("employee id", employeeID); err != nil {
		return nil, err
	}
	return uc.ledgerRepo.ListByEmployee(ctx, employeeID)
}

// Get returns one row.
func (uc *BalanceUseCase) Get(ctx context.Context, id string) (*domain.LedgerRow, error) {
	return uc.ledgerRepo.GetByID(ctx, id)
}

// ListByCategory returns every row of a category.
func (uc *BalanceUseCase) ListByCategory(ctx context.Context, categoryID string) ([]*domain.LedgerRow, error) {
	if _, err := uc.categoryRepo.GetByID(ctx, categoryID); err != nil {
		return nil, err
	}
	return uc.ledgerRepo.ListByCategory(ctx, categoryID)
}

// InvariantViolation describes one row that breaks a ledger invariant.
type InvariantViolation struct {
	LedgerRowID string
	EmployeeID  string
	CategoryID  string
	Reason      string
}

// InvariantReport is the outcome of a full ledger check.
type InvariantReport struct {
	CheckedAt  time.Time
	RowCount   int
	Violations []InvariantViolation
}

// Consistent reports whether no violations were found.
func (r *InvariantReport) Consistent() bool {
	return len(r.Violations) == 0
}

// CheckInvariants verifies every row against its category.
func (uc *BalanceUseCase) CheckInvariants(ctx context.Context) (*InvariantReport, error) {
	categories, err := uc.categoryRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.LeaveCategory, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	rows, err := uc.ledgerRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &InvariantReport{CheckedAt: time.Now().UTC(), RowCount: len(rows)}
	for _, row := range rows {
		category, ok := byID[row.CategoryID]
		if !ok {
			report.Violations = append(report.Violations, violation(row,
				fmt.Errorf("%w: category %s does not exist", domain.ErrInvariantViolation, row.CategoryID)))
			continue
		}
		if err := row.CheckInvariants(category.Cap()); err != nil {
			report.Violations = append(report.Violations, violation(row, err))
		}
	}

	if !report.Consistent() {
		uc.logger.Warn().Int("violations", len(report.Violations)).Msg("ledger invariant check failed")
	}

	return report, nil
}

func violation(row *domain.LedgerRow, err error) InvariantViolation {
	return InvariantViolation{
		LedgerRowID: row.ID,
		EmployeeID:  row.EmployeeID,
		CategoryID:  row.CategoryID,
		Reason:      err.Error(),
	}
}
