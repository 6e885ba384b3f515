package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/domain"
)

// JobRunner runs registered jobs by name.
type JobRunner interface {
	RunJob(ctx context.Context, name string) (*domain.JobSummary, error)
	Jobs() []string
}

// DirectoryRefresher refreshes the employee directory snapshot.
type DirectoryRefresher interface {
	Refresh(ctx context.Context) error
}

// JobHandler handles operational HTTP requests.
type JobHandler struct {
	runner    JobRunner
	directory DirectoryRefresher
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(runner JobRunner, directory DirectoryRefresher) *JobHandler {
	return &JobHandler{runner: runner, directory: directory}
}

// List returns the names of the registered jobs.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"jobs": h.runner.Jobs()})
}

// Run runs a job now and returns its summary.
func (h *JobHandler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.RunJob(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeDomainError(w, "failed to run job", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.JobSummaryFromDomain(summary))
}

// RefreshDirectory reloads the employee directory.
func (h *JobHandler) RefreshDirectory(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.Refresh(r.Context()); err != nil {
		writeDomainError(w, "failed to refresh directory", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}
