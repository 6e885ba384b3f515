package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

// BalanceService defines the behavior needed by BalanceHandler.
type BalanceService interface {
	AdjustBalance(ctx context.Context, input usecase.AdjustBalanceInput) (*domain.LedgerRow, error)
	InitializeBalances(ctx context.Context, employeeID string) ([]*domain.LedgerRow, error)
	InitializeCategory(ctx context.Context, categoryID string) ([]*domain.LedgerRow, error)
	Get(ctx context.Context, id string) (*domain.LedgerRow, error)
	GetForEmployee(ctx context.Context, employeeID string) ([]*domain.LedgerRow, error)
	ListByCategory(ctx context.Context, categoryID string) ([]*domain.LedgerRow, error)
	CheckInvariants(ctx context.Context) (*usecase.InvariantReport, error)
}

// BalanceHandler handles ledger row HTTP requests.
type BalanceHandler struct {
	balanceUC BalanceService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balanceUC BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceUC: balanceUC}
}

// Get retrieves a ledger row by ID.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	row, err := h.balanceUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerRowFromDomain(row))
}

// Adjust overrides the balance or carried over days of a row.
func (h *BalanceHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustBalanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	row, err := h.balanceUC.AdjustBalance(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "failed to adjust balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.LedgerRowFromDomain(row))
}

// InitializeForEmployee creates the missing rows of an employee.
func (h *BalanceHandler) InitializeForEmployee(w http.ResponseWriter, r *http.Request) {
	rows, err := h.balanceUC.InitializeBalances(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to initialize balances", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ListBalancesResponse{Balances: dto.LedgerRowsFromDomain(rows)})
}

// InitializeForCategory creates the missing rows of a category.
func (h *BalanceHandler) InitializeForCategory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.balanceUC.InitializeCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to initialize balances", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ListBalancesResponse{Balances: dto.LedgerRowsFromDomain(rows)})
}

// ListForEmployee lists the rows of an employee.
func (h *BalanceHandler) ListForEmployee(w http.ResponseWriter, r *http.Request) {
	rows, err := h.balanceUC.GetForEmployee(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to list balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListBalancesResponse{Balances: dto.LedgerRowsFromDomain(rows)})
}

// ListForCategory lists the rows of a category.
func (h *BalanceHandler) ListForCategory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.balanceUC.ListByCategory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to list balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListBalancesResponse{Balances: dto.LedgerRowsFromDomain(rows)})
}

// Consistency checks every row against the ledger invariants.
func (h *BalanceHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.balanceUC.CheckInvariants(r.Context())
	if err != nil {
		writeDomainError(w, "failed to check ledger", err)
		return
	}

	status := http.StatusOK
	if !report.Consistent() {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.ConsistencyFromReport(report))
}
