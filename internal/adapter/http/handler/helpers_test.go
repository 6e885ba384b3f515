package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/domain"
)

// withURLParam attaches a chi route parameter to req.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestParseIntQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/applications?limit=50", nil)
	if got := parseIntQuery(req, "limit", 10); got != 50 {
		t.Fatalf("expected limit=50, got %d", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/applications?limit=invalid", nil)
	if got := parseIntQuery(req, "limit", 10); got != 10 {
		t.Fatalf("expected fallback to default, got %d", got)
	}

	req.URL = &url.URL{RawQuery: ""}
	if got := parseIntQuery(req, "limit", 25); got != 25 {
		t.Fatalf("expected default when missing, got %d", got)
	}
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query         string
		limit, offset int
	}{
		{"", defaultLimit, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=0&offset=-5", defaultLimit, 0},
		{"limit=100000", maxLimit, 0},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/applications?"+tt.query, nil)
		limit, offset := pagination(req)
		if limit != tt.limit || offset != tt.offset {
			t.Fatalf("%q: expected %d/%d, got %d/%d", tt.query, tt.limit, tt.offset, limit, offset)
		}
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", domain.ValidationErrorf("bad dates"), http.StatusBadRequest},
		{"application not found", domain.ErrApplicationNotFound, http.StatusNotFound},
		{"wrapped category not found", fmt.Errorf("lookup: %w", domain.ErrCategoryNotFound), http.StatusNotFound},
		{"employee not found", domain.ErrEmployeeNotFound, http.StatusNotFound},
		{"insufficient balance", domain.NewInsufficientBalanceError(decimal.NewFromInt(1), decimal.NewFromInt(2)), http.StatusConflict},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden},
		{"invalid state", domain.ErrInvalidState, http.StatusConflict},
		{"category in use", domain.ErrCategoryInUse, http.StatusConflict},
		{"category name taken", domain.ErrCategoryNameTaken, http.StatusConflict},
		{"directory unavailable", fmt.Errorf("%w: timeout", domain.ErrDirectoryUnavailable), http.StatusServiceUnavailable},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := mapDomainError(tt.err); got != tt.expected {
				t.Fatalf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	payload := map[string]string{"status": "ok"}

	writeJSON(rr, http.StatusCreated, payload)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content-type application/json, got %s", ct)
	}

	var decoded map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if decoded["status"] != "ok" {
		t.Fatalf("expected payload to round-trip, got %+v", decoded)
	}
}

func TestWriteDomainError(t *testing.T) {
	rr := httptest.NewRecorder()

	writeDomainError(rr, "failed to approve", domain.NewInsufficientBalanceError(decimal.NewFromInt(2), decimal.NewFromInt(5)))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}

	var resp dto.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if resp.Error != "failed to approve" || resp.Message != "Insufficient leave balance. Available: 2.00, Requested: 5.00" {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestRequester(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/applications/a", nil)
	req.Header.Set(EmployeeIDHeader, "emp-1")
	req.Header.Set(EmployeeRoleHeader, "admin")

	id, role := requester(req)
	if id != "emp-1" || role != domain.RoleAdmin {
		t.Fatalf("unexpected requester %q/%q", id, role)
	}
}
