package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
)

// ApplicationUseCase handles the leave application workflow.
type ApplicationUseCase struct {
	txManager    TransactionManager
	retrier      Retrier
	appRepo      ApplicationRepository
	ledgerRepo   LedgerRepository
	categoryRepo CategoryRepository
	directory    Directory
	notifier     Notifier
	idGen        IDGenerator
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewApplicationUseCase creates a new ApplicationUseCase.
func NewApplicationUseCase(
	txManager TransactionManager,
	retrier Retrier,
	appRepo ApplicationRepository,
	ledgerRepo LedgerRepository,
	categoryRepo CategoryRepository,
	directory Directory,
	notifier Notifier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *ApplicationUseCase {
	return &ApplicationUseCase{
		txManager:    txManager,
		retrier:      retrierOrDefault(retrier),
		appRepo:      appRepo,
		ledgerRepo:   ledgerRepo,
		categoryRepo: categoryRepo,
		directory:    directory,
		notifier:     notifier,
		idGen:        idGen,
		metrics:      metrics,
		logger:       logger.With().Str("component", "applications").Logger(),
	}
}

// CreateApplicationInput represents input for submitting a leave application.
type CreateApplicationInput struct {
	EmployeeID  string
	CategoryID  string
	StartDate   time.Time
	EndDate     time.Time
	Reason      *string
	DocumentURL *string
}

func (in CreateApplicationInput) validate() error {
	if err := domain.ValidateID("employee id", in.EmployeeID); err != nil {
		return err
	}
	if err := domain.ValidateID("category id", in.CategoryID); err != nil {
		return err
	}
	if err := domain.ValidateDateRange(in.StartDate, in.EndDate); err != nil {
		return err
	}
	if err := domain.ValidateReason(in.Reason); err != nil {
		return err
	}
	return domain.ValidateDocumentURL(in.DocumentURL)
}

// Create submits a Pending application. The balance check here is advisory; the
// authoritative one happens on approval.
func (uc *ApplicationUseCase) Create(ctx context.Context, input CreateApplicationInput) (*domain.LeaveApplication, error) {
	app, err := uc.create(ctx, input)
	if err != nil {
		uc.countError("create", err)
		return nil, err
	}

	uc.metrics.ApplicationsCreated.Inc()
	return app, nil
}

func (uc *ApplicationUseCase) create(ctx context.Context, input CreateApplicationInput) (*domain.LeaveApplication, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	requested := domain.BusinessDays(input.StartDate, input.EndDate)
	if requested == 0 {
		return nil, domain.ValidationErrorf("date range contains no business days")
	}

	category, err := uc.categoryRepo.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	employee, err := uc.directory.LookupByID(ctx, input.EmployeeID)
	if err != nil {
		return nil, err
	}

	row, err := uc.ledgerRepo.GetByEmployeeAndCategory(ctx, input.EmployeeID, input.CategoryID)
	if err != nil {
		return nil, err
	}

	app := &domain.LeaveApplication{
		ID:            uc.idGen.Generate(),
		EmployeeID:    input.EmployeeID,
		CategoryID:    input.CategoryID,
		StartDate:     input.StartDate.UTC(),
		EndDate:       input.EndDate.UTC(),
		RequestedDays: decimalDays(requested),
		Reason:        input.Reason,
		DocumentURL:   input.DocumentURL,
		Status:        domain.ApplicationStatusPending,
	}

	if err := row.CanDebit(app.RequestedDays); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	now := time.Now().UTC()
	app.CreatedAt = now
	app.UpdatedAt = now

	if err := uc.appRepo.Create(txCtx, tx, app); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.notifyReviewers(ctx, employee, applicationSubmittedMessage(employee, category.Name, app))

	return app, nil
}

// UpdateStatusInput represents input for a manager decision.
type UpdateStatusInput struct {
	ApplicationID  string
	Status         domain.ApplicationStatus
	ManagerComment *string
}

// UpdateStatus moves an application to a new status. Entering Approved debits the
// ledger row in the same transaction as the status write; leaving Approved restores
// the debited days.
func (uc *ApplicationUseCase) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*domain.LeaveApplication, error) {
	if err := domain.ValidateID("application id", input.ApplicationID); err != nil {
		return nil, err
	}
	if !input.Status.IsValid() {
		return nil, domain.ValidationErrorf("unknown application status %q", input.Status)
	}
	if err := domain.ValidateComment(input.ManagerComment); err != nil {
		return nil, err
	}

	var (
		app      *domain.LeaveApplication
		previous domain.ApplicationStatus
	)

	err := uc.retrier.Retry(ctx, func() error {
		var err error
		app, previous, err = uc.updateStatusTx(ctx, input)
		return err
	})
	if err != nil {
		uc.countError("update_status", err)
		return nil, err
	}

	if previous != app.Status {
		uc.metrics.ApplicationTransitions.WithLabelValues(string(previous), string(app.Status)).Inc()
		uc.notifyStatusChange(ctx, app)
	}

	return app, nil
}

func (uc *ApplicationUseCase) updateStatusTx(ctx context.Context, input UpdateStatusInput) (*domain.LeaveApplication, domain.ApplicationStatus, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Lock order is application, then ledger row.
	app, err := uc.appRepo.GetByIDForUpdate(txCtx, tx, input.ApplicationID)
	if err != nil {
		return nil, "", err
	}
	previous := app.Status

	effect := domain.TransitionEffect(previous, input.Status)
	if effect != domain.BalanceEffectNone {
		row, err := uc.ledgerRepo.GetForUpdate(txCtx, tx, app.EmployeeID, app.CategoryID)
		if err != nil {
			return nil, "", err
		}

		switch effect {
		case domain.BalanceEffectDebit:
			err = row.Debit(app.RequestedDays)
		case domain.BalanceEffectRestore:
			err = row.Credit(app.RequestedDays)
		}
		if err != nil {
			return nil, "", err
		}

		row.UpdatedAt = time.Now().UTC()
		if err := uc.ledgerRepo.Update(txCtx, tx, row); err != nil {
			return nil, "", err
		}
	}

	app.Status = input.Status
	if input.ManagerComment != nil {
		app.ManagerComment = input.ManagerComment
	}
	app.UpdatedAt = time.Now().UTC()

	if err := uc.appRepo.Update(txCtx, tx, app); err != nil {
		return nil, "", err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, "", err
	}

	switch effect {
	case domain.BalanceEffectDebit:
		uc.metrics.DaysDebited.Add(app.RequestedDays.InexactFloat64())
	case domain.BalanceEffectRestore:
		uc.metrics.DaysRestored.Add(app.RequestedDays.InexactFloat64())
	}

	return app, previous, nil
}

// DeleteApplicationInput represents input for withdrawing an application.
type DeleteApplicationInput struct {
	ApplicationID string
	RequesterID   string
	RequesterRole domain.Role
}

// Delete removes a Pending application. Only the applicant or an admin may delete.
func (uc *ApplicationUseCase) Delete(ctx context.Context, input DeleteApplicationInput) error {
	if err := domain.ValidateID("application id", input.ApplicationID); err != nil {
		return err
	}
	if err := domain.ValidateID("requester id", input.RequesterID); err != nil {
		return err
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	app, err := uc.appRepo.GetByIDForUpdate(txCtx, tx, input.ApplicationID)
	if err != nil {
		return err
	}

	if err := app.CanBeDeletedBy(input.RequesterID, input.RequesterRole); err != nil {
		uc.countError("delete", err)
		return err
	}

	if err := uc.appRepo.Delete(txCtx, tx, app.ID); err != nil {
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		return err
	}

	uc.metrics.ApplicationsDeleted.Inc()
	return nil
}

// Get retrieves an application by ID.
func (uc *ApplicationUseCase) Get(ctx context.Context, id string) (*domain.LeaveApplication, error) {
	return uc.appRepo.GetByID(ctx, id)
}

// ListByEmployee lists the applications of one employee.
func (uc *ApplicationUseCase) ListByEmployee(ctx context.Context, employeeID string, limit, offset int) ([]*domain.LeaveApplication, error) {
	return uc.List(ctx, ApplicationFilter{EmployeeID: employeeID, Limit: limit, Offset: offset})
}

// List lists applications matching filter.
func (uc *ApplicationUseCase) List(ctx context.Context, filter ApplicationFilter) ([]*domain.LeaveApplication, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ValidationErrorf("unknown application status %q", filter.Status)
	}

	filter.Limit, filter.Offset, _ = domain.ValidatePagination(filter.Limit, filter.Offset)

	return uc.appRepo.List(ctx, filter)
}

func (uc *ApplicationUseCase) notifyReviewers(ctx context.Context, employee *domain.Employee, message string) {
	everyone, err := uc.directory.LookupAll(ctx)
	if err != nil {
		uc.logger.Warn().Err(err).Str("employee_id", employee.ID).Msg("cannot resolve reviewers, notification skipped")
		return
	}

	recipients := domain.ReviewersFor(employee, everyone)
	if len(recipients) == 0 {
		uc.logger.Debug().Str("department", employee.Department).Msg("no reviewers for department")
		return
	}

	uc.notifier.Notify(ctx, recipients, message)
}

func (uc *ApplicationUseCase) notifyStatusChange(ctx context.Context, app *domain.LeaveApplication) {
	name := "leave"
	if category, err := uc.categoryRepo.GetByID(ctx, app.CategoryID); err == nil {
		name = category.Name
	}

	uc.notifier.Notify(ctx, []string{app.EmployeeID}, statusChangedMessage(name, app))
}

func (uc *ApplicationUseCase) countError(operation string, err error) {
	uc.metrics.ApplicationErrors.WithLabelValues(operation, errorType(err)).Inc()
}
