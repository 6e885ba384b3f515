package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/adapter/http/dto"
	"github.com/iho/leaveledger/internal/adapter/http/handler"
	"github.com/iho/leaveledger/internal/infrastructure/config"
)

func newDirectoryServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/users" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"users":[
			{"id":"emp-1","name":"Alice","department":"eng","email":"alice@example.com","role":"staff"},
			{"id":"mgr-1","name":"Carol","department":"eng","email":"carol@example.com","role":"manager"}
		]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func memoryConfig(directoryURL string) *config.Config {
	return &config.Config{
		Storage:                  config.StorageMemory,
		DirectoryURL:             directoryURL,
		DirectoryRefreshInterval: time.Hour,
		DirectoryMaxStaleness:    time.Hour,
		DirectoryTimeout:         time.Second,
		NotifyQueueSize:          16,
		NotifyWorkers:            1,
		JobTimeout:               time.Minute,
		JobParallelism:           2,
		AccrualSchedule:          "0 0 1 * *",
		CarryoverSchedule:        "1 0 1 1 *",
		ExpirySchedule:           "0 0 31 1 *",
		ReminderSchedule:         "0 7 * * *",
		ReminderDaysAhead:        3,
		RateLimitRPS:             1000,
		RateLimitBurst:           1000,
		IdempotencyTTL:           time.Hour,
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set(handler.EmployeeIDHeader, "emp-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApplication_MemoryStorageEndToEnd(t *testing.T) {
	dir := newDirectoryServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApplication(ctx, memoryConfig(dir.URL), zerolog.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newApplication: %v", err)
	}
	app.start(ctx)
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := app.close(closeCtx); err != nil {
			t.Errorf("close: %v", err)
		}
	}()

	if rec := do(t, app.handler, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", rec.Code, rec.Body.String())
	}

	rec := do(t, app.handler, http.MethodPost, "/api/v1/categories/",
		`{"name":"Annual","default_annual_allocation":"24","max_carryover_days":5}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, app.handler, http.MethodGet, "/api/v1/employees/emp-1/balances", "")
	var balances dto.ListBalancesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &balances); err != nil {
		t.Fatalf("decode balances: %v", err)
	}
	if len(balances.Balances) != 1 {
		t.Fatalf("expected the new category to seed one row, got %+v", balances)
	}

	rec = do(t, app.handler, http.MethodPost, "/api/v1/jobs/accrual/run", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("run accrual: %d %s", rec.Code, rec.Body.String())
	}
	var summary dto.JobSummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Job != "accrual" || summary.Processed != 2 {
		t.Fatalf("expected both rows credited, got %+v", summary)
	}

	rec = do(t, app.handler, http.MethodPost, "/api/v1/jobs/payroll/run", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected unknown job to 404, got %d", rec.Code)
	}

	rec = do(t, app.handler, http.MethodGet, "/api/v1/ledger/consistency", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected consistent ledger, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestApplication_RejectsBadSchedule(t *testing.T) {
	dir := newDirectoryServer(t)
	cfg := memoryConfig(dir.URL)
	cfg.SchedulerEnabled = true
	cfg.AccrualSchedule = "every full moon"

	if _, err := newApplication(context.Background(), cfg, zerolog.Nop(), prometheus.NewRegistry()); err == nil {
		t.Fatal("expected invalid cron spec to fail")
	}
}
