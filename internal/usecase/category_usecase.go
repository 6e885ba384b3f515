package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/domain"
)

// CategoryUseCase handles leave category definitions.
type CategoryUseCase struct {
	categoryRepo CategoryRepository
	ledgerRepo   LedgerRepository
	appRepo      ApplicationRepository
	balances     *BalanceUseCase
	idGen        IDGenerator
	logger       zerolog.Logger
}

// NewCategoryUseCase creates a new CategoryUseCase. balances may be nil, in which case
// new categories get no ledger rows until InitializeCategory is called.
func NewCategoryUseCase(
	categoryRepo CategoryRepository,
	ledgerRepo LedgerRepository,
	appRepo ApplicationRepository,
	balances *BalanceUseCase,
	idGen IDGenerator,
	logger zerolog.Logger,
) *CategoryUseCase {
	return &CategoryUseCase{
		categoryRepo: categoryRepo,
		ledgerRepo:   ledgerRepo,
		appRepo:      appRepo,
		balances:     balances,
		idGen:        idGen,
		logger:       logger.With().Str("component", "categories").Logger(),
	}
}

// CreateCategoryInput represents input for creating a leave category.
type CreateCategoryInput struct {
	Name                    string
	DefaultAnnualAllocation decimal.Decimal
	// AccrualRate defaults to a twelfth of the annual allocation when nil.
	AccrualRate      *decimal.Decimal
	MaxCarryoverDays int
	Active           *bool
}

// Create adds a category and seeds a ledger row for every known employee.
func (uc *CategoryUseCase) Create(ctx context.Context, input CreateCategoryInput) (*domain.LeaveCategory, error) {
	if err := domain.ValidateDays("default annual allocation", input.DefaultAnnualAllocation); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	category := &domain.LeaveCategory{
		ID:                      uc.idGen.Generate(),
		Name:                    input.Name,
		DefaultAnnualAllocation: input.DefaultAnnualAllocation,
		AccrualRate:             domain.DefaultAccrualRate(input.DefaultAnnualAllocation),
		MaxCarryoverDays:        input.MaxCarryoverDays,
		Active:                  true,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if input.AccrualRate != nil {
		if err := domain.ValidateDays("accrual rate", *input.AccrualRate); err != nil {
			return nil, err
		}
		category.AccrualRate = *input.AccrualRate
	}
	if input.Active != nil {
		category.Active = *input.Active
	}

	category.Normalize()
	if err := category.Validate(); err != nil {
		return nil, err
	}

	if err := uc.ensureNameFree(ctx, category.Name, ""); err != nil {
		return nil, err
	}

	if err := uc.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	if uc.balances != nil {
		if _, err := uc.balances.InitializeCategory(ctx, category.ID); err != nil {
			uc.logger.Warn().Err(err).Str("category_id", category.ID).Msg("initializing balances for new category failed")
		}
	}

	return category, nil
}

// UpdateCategoryInput represents a partial update of a leave category.
type UpdateCategoryInput struct {
	ID                      string
	Name                    *string
	DefaultAnnualAllocation *decimal.Decimal
	AccrualRate             *decimal.Decimal
	MaxCarryoverDays        *int
	Active                  *bool
}

// Update changes the given fields of a category. Lowering MaxCarryoverDays below the
// carried-over days already stored on a ledger row fails with ErrInvalidState.
func (uc *CategoryUseCase) Update(ctx context.Context, input UpdateCategoryInput) (*domain.LeaveCategory, error) {
	category, err := uc.categoryRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	previousCap := category.MaxCarryoverDays

	if input.Name != nil {
		category.Name = *input.Name
	}
	if input.DefaultAnnualAllocation != nil {
		if err := domain.ValidateDays("default annual allocation", *input.DefaultAnnualAllocation); err != nil {
			return nil, err
		}
		category.DefaultAnnualAllocation = *input.DefaultAnnualAllocation
	}
	if input.AccrualRate != nil {
		if err := domain.ValidateDays("accrual rate", *input.AccrualRate); err != nil {
			return nil, err
		}
		category.AccrualRate = *input.AccrualRate
	}
	if input.MaxCarryoverDays != nil {
		category.MaxCarryoverDays = *input.MaxCarryoverDays
	}
	if input.Active != nil {
		category.Active = *input.Active
	}

	category.Normalize()
	if err := category.Validate(); err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := uc.ensureNameFree(ctx, category.Name, category.ID); err != nil {
			return nil, err
		}
	}

	if category.MaxCarryoverDays < previousCap {
		if err := uc.ensureCapCoversRows(ctx, category); err != nil {
			return nil, err
		}
	}

	category.UpdatedAt = time.Now().UTC()
	if err := uc.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// Delete removes a category that no ledger row or application references.
func (uc *CategoryUseCase) Delete(ctx context.Context, id string) error {
	if _, err := uc.categoryRepo.GetByID(ctx, id); err != nil {
		return err
	}

	rows, err := uc.ledgerRepo.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	apps, err := uc.appRepo.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if rows > 0 || apps > 0 {
		return domain.ErrCategoryInUse
	}

	return uc.categoryRepo.Delete(ctx, id)
}

// Get retrieves a category by ID.
func (uc *CategoryUseCase) Get(ctx context.Context, id string) (*domain.LeaveCategory, error) {
	return uc.categoryRepo.GetByID(ctx, id)
}

// List returns every category ordered by name.
func (uc *CategoryUseCase) List(ctx context.Context) ([]*domain.LeaveCategory, error) {
	return uc.categoryRepo.List(ctx)
}

func (uc *CategoryUseCase) ensureCapCoversRows(ctx context.Context, category *domain.LeaveCategory) error {
	rows, err := uc.ledgerRepo.ListByCategory(ctx, category.ID)
	if err != nil {
		return err
	}

	limit := category.Cap()
	over := 0
	for _, row := range rows {
		if row.CarriedOver.GreaterThan(limit) {
			over++
		}
	}
	if over > 0 {
		return fmt.Errorf("%w: %d ledger rows carry over more than %d days", domain.ErrInvalidState, over, category.MaxCarryoverDays)
	}
	return nil
}

func (uc *CategoryUseCase) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := uc.categoryRepo.GetByName(ctx, name)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != selfID:
		return domain.ErrCategoryNameTaken
	}
	return nil
}
