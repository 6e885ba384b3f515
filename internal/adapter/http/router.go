package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/iho/leaveledger/internal/adapter/http/handler"
	"github.com/iho/leaveledger/internal/adapter/http/middleware"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
	"github.com/iho/leaveledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	ApplicationHandler  *handler.ApplicationHandler
	BalanceHandler      *handler.BalanceHandler
	CategoryHandler     *handler.CategoryHandler
	NotificationHandler *handler.NotificationHandler
	JobHandler          *handler.JobHandler
	HealthHandler       *handler.HealthHandler

	Logger           zerolog.Logger
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	RateLimiter      *middleware.RateLimiter
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	AllowedOrigins   []string
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Metrics))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept", "Content-Type", middleware.IdempotencyKeyHeader,
				handler.EmployeeIDHeader, handler.EmployeeRoleHeader,
			},
			ExposedHeaders: []string{middleware.IdempotencyReplayHeader},
			MaxAge:         300,
		}))
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotencyMiddleware := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL)
			r.Use(idempotencyMiddleware.Wrap)
		}

		// Applications
		r.Route("/applications", func(r chi.Router) {
			r.Post("/", cfg.ApplicationHandler.Create)
			r.Get("/", cfg.ApplicationHandler.List)
			r.Get("/{id}", cfg.ApplicationHandler.Get)
			r.Put("/{id}/status", cfg.ApplicationHandler.UpdateStatus)
			r.Delete("/{id}", cfg.ApplicationHandler.Delete)
		})

		// Ledger rows
		r.Route("/balances", func(r chi.Router) {
			r.Get("/{id}", cfg.BalanceHandler.Get)
			r.Put("/{id}", cfg.BalanceHandler.Adjust)
		})
		r.Get("/ledger/consistency", cfg.BalanceHandler.Consistency)

		// Employees
		r.Route("/employees/{id}", func(r chi.Router) {
			r.Get("/balances", cfg.BalanceHandler.ListForEmployee)
			r.Post("/balances", cfg.BalanceHandler.InitializeForEmployee)
			r.Get("/notifications", cfg.NotificationHandler.ListForEmployee)
		})

		// Categories
		r.Route("/categories", func(r chi.Router) {
			r.Post("/", cfg.CategoryHandler.Create)
			r.Get("/", cfg.CategoryHandler.List)
			r.Get("/{id}", cfg.CategoryHandler.Get)
			r.Put("/{id}", cfg.CategoryHandler.Update)
			r.Delete("/{id}", cfg.CategoryHandler.Delete)
			r.Get("/{id}/balances", cfg.BalanceHandler.ListForCategory)
			r.Post("/{id}/balances", cfg.BalanceHandler.InitializeForCategory)
		})

		// Notifications
		r.Post("/notifications/{id}/read", cfg.NotificationHandler.MarkRead)

		// Operations
		r.Get("/jobs", cfg.JobHandler.List)
		r.Post("/jobs/{name}/run", cfg.JobHandler.Run)
		r.Post("/directory/refresh", cfg.JobHandler.RefreshDirectory)
	})

	return r
}
