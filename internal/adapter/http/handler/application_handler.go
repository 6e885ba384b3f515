package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/domain"
	"github.com/iho/leaveledger/internal/usecase"
)

// ApplicationService defines the behavior needed by ApplicationHandler.
type ApplicationService interface {
	Create(ctx context.Context, input usecase.CreateApplicationInput) (*domain.LeaveApplication, error)
	UpdateStatus(ctx context.Context, input usecase.UpdateStatusInput) (*domain.LeaveApplication, error)
	Delete(ctx context.Context, input usecase.DeleteApplicationInput) error
	Get(ctx context.Context, id string) (*domain.LeaveApplication, error)
	List(ctx context.Context, filter usecase.ApplicationFilter) ([]*domain.LeaveApplication, error)
}

// ApplicationHandler handles leave application HTTP requests.
type ApplicationHandler struct {
	applicationUC ApplicationService
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(applicationUC ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applicationUC: applicationUC}
}

// Create submits a new leave application.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateApplicationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid request body", err)
		return
	}

	app, err := h.applicationUC.Create(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to create application", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ApplicationFromDomain(app))
}

// Get retrieves an application by ID.
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.applicationUC.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get application", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ApplicationFromDomain(app))
}

// List lists applications, optionally filtered by employee_id and status.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	status, err := dto.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeDomainError(w, "invalid status filter", err)
		return
	}
	limit, offset := pagination(r)

	apps, err := h.applicationUC.List(r.Context(), usecase.ApplicationFilter{
		EmployeeID: r.URL.Query().Get("employee_id"),
		Status:     status,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeDomainError(w, "failed to list applications", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListApplicationsResponse{
		Applications: dto.ApplicationsFromDomain(apps),
		Limit:        limit,
		Offset:       offset,
	})
}

// UpdateStatus approves, rejects or reopens an application.
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	app, err := h.applicationUC.UpdateStatus(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "failed to update application status", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ApplicationFromDomain(app))
}

// Delete withdraws a pending application on behalf of the caller.
func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	requesterID, role := requester(r)

	err := h.applicationUC.Delete(r.Context(), usecase.DeleteApplicationInput{
		ApplicationID: chi.URLParam(r, "id"),
		RequesterID:   requesterID,
		RequesterRole: role,
	})
	if err != nil {
		writeDomainError(w, "failed to delete application", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
