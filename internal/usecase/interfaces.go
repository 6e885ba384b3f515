package usecase

import (
	"context"
	"time"

	"github.com/iho/leaveledger/internal/domain"
)

// CategoryRepository defines data access for leave categories.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.LeaveCategory) error
	Update(ctx context.Context, category *domain.LeaveCategory) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.LeaveCategory, error)
	GetByName(ctx context.Context, name string) (*domain.LeaveCategory, error)
	List(ctx context.Context) ([]*domain.LeaveCategory, error)
}

// LedgerRepository defines data access for ledger rows.
type LedgerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.LedgerRow, error)
	GetByEmployeeAndCategory(ctx context.Context, employeeID, categoryID string) (*domain.LedgerRow, error)
	// GetByIDForUpdate locks the row until tx ends.
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LedgerRow, error)
	// GetForUpdate locks the row of an employee and category until tx ends.
	GetForUpdate(ctx context.Context, tx Transaction, employeeID, categoryID string) (*domain.LedgerRow, error)
	List(ctx context.Context) ([]*domain.LedgerRow, error)
	ListByCategory(ctx context.Context, categoryID string) ([]*domain.LedgerRow, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]*domain.LedgerRow, error)
	ListIDs(ctx context.Context) ([]string, error)
	ListWithExcess(ctx context.Context) ([]string, error)
	Update(ctx context.Context, tx Transaction, row *domain.LedgerRow) error
	// CreateMissing inserts row unless the employee already has one for the category.
	CreateMissing(ctx context.Context, tx Transaction, row *domain.LedgerRow) (bool, error)
	CountByCategory(ctx context.Context, categoryID string) (int, error)
}

// ApplicationFilter narrows application listings.
type ApplicationFilter struct {
	EmployeeID string
	Status     domain.ApplicationStatus
	Limit      int
	Offset     int
}

// ApplicationRepository defines data access for leave applications.
type ApplicationRepository interface {
	Create(ctx context.Context, tx Transaction, app *domain.LeaveApplication) error
	GetByID(ctx context.Context, id string) (*domain.LeaveApplication, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LeaveApplication, error)
	Update(ctx context.Context, tx Transaction, app *domain.LeaveApplication) error
	Delete(ctx context.Context, tx Transaction, id string) error
	List(ctx context.Context, filter ApplicationFilter) ([]*domain.LeaveApplication, error)
	// ListApprovedStarting returns approved applications whose start date is in [from, to].
	ListApprovedStarting(ctx context.Context, from, to time.Time) ([]*domain.LeaveApplication, error)
	CountByCategory(ctx context.Context, categoryID string) (int, error)
}

// NotificationRepository defines data access for delivered notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, id string) error
	CountUnread(ctx context.Context, userID string) (int, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Directory resolves employees from the identity service.
type Directory interface {
	LookupByID(ctx context.Context, id string) (*domain.Employee, error)
	LookupAll(ctx context.Context) ([]*domain.Employee, error)
}

// Notifier delivers messages to employees. Delivery is best effort: Notify never blocks
// on delivery and never reports failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, recipientIDs []string, message string)
}

// Job is a batch operation over the ledger triggered by the scheduler, HTTP or CLI.
type Job interface {
	Name() string
	Run(ctx context.Context, now time.Time) (*domain.JobSummary, error)
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key so the request can be retried.
	Release(ctx context.Context, key string) error
}
