package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/adapter/repository/memory"
	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
	"github.com/iho/leaveledger/internal/usecase"
)

var (
	alice = &domain.Employee{ID: "emp-1", Name: "Alice", Department: "eng", Role: domain.RoleStaff}
	bob   = &domain.Employee{ID: "emp-2", Name: "Bob", Department: "sales", Role: domain.RoleStaff}
	carol = &domain.Employee{ID: "mgr-1", Name: "Carol", Department: "eng", Role: domain.RoleManager}
	dave  = &domain.Employee{ID: "mgr-2", Name: "Dave", Department: "sales", Role: domain.RoleManager}
	erin  = &domain.Employee{ID: "adm-1", Name: "Erin", Department: "ops", Role: domain.RoleAdmin}

	staff = []*domain.Employee{alice, bob, carol, dave, erin}
)

// Monday 3 March 2025 to Friday 7 March 2025 is five business days.
var (
	week1Start = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	week1End   = time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)
)

type staticDirectory struct {
	employees []*domain.Employee
}

func (d *staticDirectory) LookupByID(_ context.Context, id string) (*domain.Employee, error) {
	for _, e := range d.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, domain.ErrEmployeeNotFound
}

func (d *staticDirectory) LookupAll(context.Context) ([]*domain.Employee, error) {
	return d.employees, nil
}

type sentMessage struct {
	recipients []string
	message    string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (n *recordingNotifier) Notify(_ context.Context, recipientIDs []string, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{recipients: append([]string(nil), recipientIDs...), message: message})
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

type sequenceIDs struct {
	prefix string
	next   atomic.Int64
}

func (g *sequenceIDs) Generate() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.next.Add(1))
}

type harness struct {
	store      *memory.Store
	ledger     *memory.LedgerRepository
	categories *memory.CategoryRepository
	apps       *memory.ApplicationRepository
	directory  *staticDirectory
	notifier   *recordingNotifier
	ids        *sequenceIDs
	metrics    *metrics.Metrics
	logger     zerolog.Logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := memory.NewStore()
	return &harness{
		store:      store,
		ledger:     memory.NewLedgerRepository(store),
		categories: memory.NewCategoryRepository(store),
		apps:       memory.NewApplicationRepository(store),
		directory:  &staticDirectory{employees: staff},
		notifier:   &recordingNotifier{},
		ids:        &sequenceIDs{prefix: "id"},
		metrics:    metrics.New(prometheus.NewRegistry()),
		logger:     zerolog.Nop(),
	}
}

func (h *harness) applications() *usecase.ApplicationUseCase {
	return usecase.NewApplicationUseCase(h.store, nil, h.apps, h.ledger, h.categories,
		h.directory, h.notifier, h.ids, h.metrics, h.logger)
}

func (h *harness) balances() *usecase.BalanceUseCase {
	return usecase.NewBalanceUseCase(h.store, nil, h.ledger, h.categories, h.directory, h.ids, h.metrics, h.logger)
}

func (h *harness) categoryUseCase() *usecase.CategoryUseCase {
	return usecase.NewCategoryUseCase(h.categories, h.ledger, h.apps, h.balances(), h.ids, h.logger)
}

func (h *harness) seedCategory(t *testing.T, name string, allocation, rate string, maxCarryover int, active bool) *domain.LeaveCategory {
	t.Helper()

	c := &domain.LeaveCategory{
		ID:                      "cat-" + name,
		Name:                    name,
		DefaultAnnualAllocation: decimal.RequireFromString(allocation),
		AccrualRate:             decimal.RequireFromString(rate),
		MaxCarryoverDays:        maxCarryover,
		Active:                  active,
	}
	if err := h.categories.Create(context.Background(), c); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c
}

func (h *harness) seedRow(t *testing.T, employeeID string, category *domain.LeaveCategory, balance string) *domain.LedgerRow {
	t.Helper()

	ctx := context.Background()
	row := domain.NewLedgerRow(h.ids.Generate(), employeeID, category, time.Now().UTC())
	row.Balance = decimal.RequireFromString(balance)

	tx, err := h.store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := h.ledger.CreateMissing(ctx, tx, row); err != nil {
		t.Fatalf("seed row: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return row
}

func (h *harness) seedApplication(t *testing.T, app *domain.LeaveApplication) {
	t.Helper()

	ctx := context.Background()
	tx, err := h.store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := h.apps.Create(ctx, tx, app); err != nil {
		t.Fatalf("seed application: %v", err)
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func (h *harness) balance(t *testing.T, rowID string) decimal.Decimal {
	t.Helper()

	row, err := h.ledger.GetByID(context.Background(), rowID)
	if err != nil {
		t.Fatalf("get row: %v", err)
	}
	return row.Balance
}

func assertDays(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()

	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("expected %s days, got %s", want, got)
	}
}
