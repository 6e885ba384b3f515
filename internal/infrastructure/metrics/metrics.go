package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Application metrics
	ApplicationsCreated    prometheus.Counter
	ApplicationsDeleted    prometheus.Counter
	ApplicationTransitions *prometheus.CounterVec
	ApplicationErrors      *prometheus.CounterVec

	// Ledger metrics
	DaysDebited       prometheus.Counter
	DaysRestored      prometheus.Counter
	DaysExpired       prometheus.Counter
	BalanceOperations *prometheus.CounterVec

	// Job metrics
	JobRuns          *prometheus.CounterVec
	JobRowsProcessed *prometheus.CounterVec
	JobRowErrors     *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec

	// Notification metrics
	NotificationsQueued  prometheus.Counter
	NotificationsDropped prometheus.Counter
	NotificationsSent    prometheus.Counter
	NotificationFailures *prometheus.CounterVec

	// Directory metrics
	DirectoryRefreshes *prometheus.CounterVec
	DirectoryEmployees prometheus.Gauge

	// Database metrics
	DBRetries prometheus.Counter

	// Redis metrics
	RedisErrors *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests         *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	HTTPPanics           *prometheus.CounterVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Application metrics
		ApplicationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_applications_created_total",
			Help: "Total number of leave applications created",
		}),
		ApplicationsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_applications_deleted_total",
			Help: "Total number of pending leave applications deleted",
		}),
		ApplicationTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_application_transitions_total",
				Help: "Application status changes by source and target status",
			},
			[]string{"from", "to"},
		),
		ApplicationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_application_errors_total",
				Help: "Rejected application commands by error type",
			},
			[]string{"operation", "error_type"},
		),

		// Ledger metrics
		DaysDebited: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_days_debited_total",
			Help: "Leave days debited by approvals",
		}),
		DaysRestored: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_days_restored_total",
			Help: "Leave days restored by reversed approvals",
		}),
		DaysExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_days_expired_total",
			Help: "Excess leave days written off by expiry",
		}),
		BalanceOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_balance_operations_total",
				Help: "Total balance operations by type",
			},
			[]string{"operation"},
		),

		// Job metrics
		JobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_job_runs_total",
				Help: "Batch job runs by job and outcome",
			},
			[]string{"job", "status"},
		),
		JobRowsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_job_rows_processed_total",
				Help: "Rows updated by batch jobs",
			},
			[]string{"job"},
		),
		JobRowErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_job_row_errors_total",
				Help: "Rows that failed during batch jobs",
			},
			[]string{"job"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaveledger_job_duration_seconds",
				Help:    "Duration of batch job runs",
				Buckets: []float64{.1, .5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"job"},
		),

		// Notification metrics
		NotificationsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_notifications_queued_total",
			Help: "Notifications accepted by the dispatcher",
		}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_notifications_dropped_total",
			Help: "Notifications dropped because the queue was full or closed",
		}),
		NotificationsSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_notifications_sent_total",
			Help: "Notifications delivered to a recipient",
		}),
		NotificationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_notification_failures_total",
				Help: "Notification delivery failures by stage",
			},
			[]string{"stage"},
		),

		// Directory metrics
		DirectoryRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_directory_refreshes_total",
				Help: "Employee directory refreshes by source and outcome",
			},
			[]string{"source", "status"},
		),
		DirectoryEmployees: factory.NewGauge(prometheus.GaugeOpts{
			Name: "leaveledger_directory_employees",
			Help: "Number of employees in the current directory snapshot",
		}),

		// Database metrics
		DBRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "leaveledger_db_retries_total",
			Help: "Retried database transactions after deadlock or serialization failure",
		}),

		// Redis metrics
		RedisErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// HTTP metrics
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaveledger_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		HTTPRequestsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "leaveledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),
		HTTPPanics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaveledger_http_panics_total",
				Help: "Handler panics recovered by route",
			},
			[]string{"route"},
		),
	}
}
