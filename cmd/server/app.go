package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/leaveledger/internal/adapter/http"
	"github.com/iho/leaveledger/internal/adapter/http/handler"
	"github.com/iho/leaveledger/internal/adapter/http/middleware"
	"github.com/iho/leaveledger/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/leaveledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/leaveledger/internal/adapter/repository/redis"
	"github.com/iho/leaveledger/internal/infrastructure/config"
	"github.com/iho/leaveledger/internal/infrastructure/directory"
	"github.com/iho/leaveledger/internal/infrastructure/metrics"
	"github.com/iho/leaveledger/internal/infrastructure/notifier"
	"github.com/iho/leaveledger/internal/infrastructure/postgres"
	"github.com/iho/leaveledger/internal/infrastructure/redis"
	"github.com/iho/leaveledger/internal/infrastructure/scheduler"
	"github.com/iho/leaveledger/internal/usecase"
)

const limiterCleanupInterval = 10 * time.Minute

// storage groups the repositories of one backend.
type storage struct {
	txManager     usecase.TransactionManager
	retrier       usecase.Retrier
	ledger        usecase.LedgerRepository
	categories    usecase.CategoryRepository
	applications  usecase.ApplicationRepository
	notifications usecase.NotificationRepository
	pool          *pgxpool.Pool
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &storage{
			txManager:     store,
			ledger:        memory.NewLedgerRepository(store),
			categories:    memory.NewCategoryRepository(store),
			applications:  memory.NewApplicationRepository(store),
			notifications: memory.NewNotificationRepository(store),
		}, nil
	}

	if cfg.RunMigrations {
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
	}

	pool, err := postgres.NewPoolWithConfig(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to postgres")

	return &storage{
		txManager:     postgresRepo.NewTxManager(pool),
		retrier:       postgresRepo.NewRetrier(logger, m),
		ledger:        postgresRepo.NewLedgerRepository(pool),
		categories:    postgresRepo.NewCategoryRepository(pool),
		applications:  postgresRepo.NewApplicationRepository(pool),
		notifications: postgresRepo.NewNotificationRepository(pool),
		pool:          pool,
	}, nil
}

// application owns every long lived component of the server.
type application struct {
	cfg    *config.Config
	logger zerolog.Logger

	handler     http.Handler
	storage     *storage
	redis       *goredis.Client
	directory   *directory.Service
	dispatcher  *notifier.Dispatcher
	scheduler   *scheduler.Scheduler
	rateLimiter *middleware.RateLimiter
}

func newApplication(ctx context.Context, cfg *config.Config, logger zerolog.Logger, registry *prometheus.Registry) (*application, error) {
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	st, err := openStorage(ctx, cfg, logger, m)
	if err != nil {
		return nil, err
	}
	app := &application{cfg: cfg, logger: logger, storage: st}

	var (
		idempotencyStore usecase.IdempotencyStore
		snapshotStore    directory.SnapshotStore
	)
	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL})
		if err != nil {
			app.closeStorage()
			return nil, err
		}
		logger.Info().Msg("connected to redis")
		app.redis = client
		idempotencyStore = redisRepo.NewIdempotencyStore(client)
		snapshotStore = redisRepo.NewDirectorySnapshotStore(client, cfg.DirectoryMaxStaleness)
	} else {
		logger.Warn().Msg("REDIS_URL not set, idempotency keys and shared directory snapshots are disabled")
	}

	ids := postgresRepo.NewULIDGenerator()

	app.directory = directory.NewService(
		directory.NewHTTPSource(cfg.DirectoryURL, cfg.DirectoryTimeout),
		snapshotStore,
		directory.Options{MaxStaleness: cfg.DirectoryMaxStaleness},
		logger,
		m,
	)

	var mailer notifier.Mailer
	if cfg.SMTPHost != "" {
		mailer = notifier.NewSMTPMailer(notifier.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	app.dispatcher = notifier.NewDispatcher(notifier.Config{
		Directory:     app.directory,
		Notifications: st.notifications,
		Mailer:        mailer,
		IDs:           ids,
		Logger:        logger,
		Metrics:       m,
		QueueSize:     cfg.NotifyQueueSize,
		Workers:       cfg.NotifyWorkers,
	})

	// Use cases
	balanceUC := usecase.NewBalanceUseCase(st.txManager, st.retrier, st.ledger, st.categories, app.directory, ids, m, logger)
	applicationUC := usecase.NewApplicationUseCase(
		st.txManager, st.retrier, st.applications, st.ledger, st.categories,
		app.directory, app.dispatcher, ids, m, logger,
	)
	categoryUC := usecase.NewCategoryUseCase(st.categories, st.ledger, st.applications, balanceUC, ids, logger)
	notificationUC := usecase.NewNotificationUseCase(st.notifications)

	// Jobs
	jobOpts := usecase.JobOptions{
		Parallelism:       cfg.JobParallelism,
		IncludeInactive:   cfg.AccrualIncludeInactive,
		ReminderDaysAhead: cfg.ReminderDaysAhead,
	}
	app.scheduler = scheduler.New(scheduler.Config{Timeout: cfg.JobTimeout}, logger)
	jobs := []struct {
		spec string
		job  usecase.Job
	}{
		{cfg.AccrualSchedule, usecase.NewAccrualJob(st.txManager, st.retrier, st.ledger, st.categories, app.dispatcher, m, logger, jobOpts)},
		{cfg.CarryoverSchedule, usecase.NewCarryoverJob(st.txManager, st.retrier, st.ledger, st.categories, app.dispatcher, m, logger, jobOpts)},
		{cfg.ExpirySchedule, usecase.NewExpiryJob(st.txManager, st.retrier, st.ledger, st.categories, app.dispatcher, m, logger, jobOpts)},
		{cfg.ReminderSchedule, usecase.NewUpcomingLeaveJob(st.applications, st.categories, app.directory, app.dispatcher, m, logger, jobOpts)},
	}
	for _, j := range jobs {
		spec := j.spec
		if !cfg.SchedulerEnabled {
			spec = ""
		}
		if err := app.scheduler.Register(spec, j.job); err != nil {
			app.close(ctx)
			return nil, err
		}
	}

	// HTTP
	checks := map[string]handler.Pinger{}
	if st.pool != nil {
		checks["postgres"] = handler.PingFunc(st.pool.Ping)
	}
	if app.redis != nil {
		client := app.redis
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	app.rateLimiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	app.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		ApplicationHandler:  handler.NewApplicationHandler(applicationUC),
		BalanceHandler:      handler.NewBalanceHandler(balanceUC),
		CategoryHandler:     handler.NewCategoryHandler(categoryUC),
		NotificationHandler: handler.NewNotificationHandler(notificationUC),
		JobHandler:          handler.NewJobHandler(app.scheduler, app.directory),
		HealthHandler:       handler.NewHealthHandler(checks),
		Logger:              logger,
		Metrics:             m,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		RateLimiter:         app.rateLimiter,
		IdempotencyStore:    idempotencyStore,
		IdempotencyTTL:      cfg.IdempotencyTTL,
		AllowedOrigins:      cfg.CORSAllowedOrigins,
	})

	return app, nil
}

// start launches the background loops. They stop when ctx is cancelled.
func (a *application) start(ctx context.Context) {
	if err := a.directory.Refresh(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("initial directory refresh failed, will retry lazily")
	}
	go a.directory.Run(ctx, a.cfg.DirectoryRefreshInterval)

	go func() {
		ticker := time.NewTicker(limiterCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.rateLimiter.CleanupLimiters(time.Hour)
			}
		}
	}()

	if a.cfg.SchedulerEnabled {
		a.scheduler.Start()
	}
}

// close stops the scheduler, drains the notification queue and releases connections.
func (a *application) close(ctx context.Context) error {
	var firstErr error
	if err := a.scheduler.Stop(ctx); err != nil {
		firstErr = fmt.Errorf("stop scheduler: %w", err)
	}
	if err := a.dispatcher.Close(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close dispatcher: %w", err)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.closeStorage()
	return firstErr
}

func (a *application) closeStorage() {
	if a.storage.pool != nil {
		a.storage.pool.Close()
	}
}
