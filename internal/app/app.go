package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"teamtasks/backend/internal/cache"
	"teamtasks/backend/internal/config"
	"teamtasks/backend/internal/database"
	"teamtasks/backend/internal/logging"
	"teamtasks/backend/internal/mailer"
	"teamtasks/backend/internal/middleware"
	"teamtasks/backend/internal/monitoring"
	"teamtasks/backend/internal/repositories"
	"teamtasks/backend/internal/services"
	"teamtasks/backend/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	shutdownTimeout  = 10 * time.Second
	housekeepingTick = time.Minute
)

// Dependencies are the external resources an App is built on. Redis may be
// nil, in which case caching and background delivery are disabled.
type Dependencies struct {
	Pool   *database.DatabasePool
	Redis  *redis.Client
	Mailer mailer.Mailer
}

type App struct {
	config  *config.Config
	log     *slog.Logger
	deps    Dependencies
	monitor *monitoring.Monitor
	limiter *middleware.RateLimiter
	worker  *worker.Worker
	queue   *worker.JobQueue
	users   *repositories.UserRepository
	tasks   services.TaskService
	cached  *services.CachedTaskService
	router  *gin.Engine
}

// New opens the database and redis connections described by cfg and builds
// the application on top of them.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := database.NewDatabasePool(database.NewPoolConfig(cfg, logging.GormLevel(cfg.Log.Level)))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	deps := Dependencies{Pool: pool, Mailer: mailer.New(cfg.SMTP, log)}
	if cfg.Cache.Enabled || cfg.Worker.Enabled {
		deps.Redis = cache.NewRedisClient(cache.CacheConfigFrom(cfg))
		if err := deps.Redis.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable at startup", "addr", cfg.GetRedisAddr(), "error", err)
		}
	}

	return NewWithDependencies(cfg, log, deps)
}

func NewWithDependencies(cfg *config.Config, log *slog.Logger, deps Dependencies) (*App, error) {
	if deps.Pool == nil {
		return nil, errors.New("database pool is required")
	}
	if log == nil {
		log = slog.Default()
	}
	if deps.Mailer == nil {
		deps.Mailer = mailer.NewLogMailer(log)
	}

	a := &App{
		config:  cfg,
		log:     log,
		deps:    deps,
		monitor: monitoring.NewMonitor(),
	}

	db := deps.Pool.DB
	a.users = repositories.NewUserRepository(db)
	taskRepo := repositories.NewTaskRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)

	var queue services.JobEnqueuer
	if deps.Redis != nil && cfg.Worker.Enabled {
		a.queue = worker.NewJobQueue(deps.Redis, cfg.Worker.MaxTries)
		queue = a.queue
	}
	notifications := services.NewNotificationService(notificationRepo, a.users, queue, deps.Mailer, log)

	a.tasks = services.NewTaskService(taskRepo, a.users, notifications, services.WithLogger(log))
	if deps.Redis != nil && cfg.Cache.Enabled {
		redisCache := cache.NewRedisCache(deps.Redis, "cache:")
		multi := cache.NewMultiLevelCache(redisCache, cache.NewCircuitBreaker(nil), log)
		a.cached = services.NewCachedTaskService(a.tasks, multi, cfg.Cache.TTL, log)
		a.tasks = a.cached
	}

	if a.queue != nil {
		a.worker = worker.NewWorker(worker.WorkerConfig{
			RedisClient:  deps.Redis,
			Concurrency:  cfg.Worker.Concurrency,
			PollInterval: cfg.Worker.PollInterval,
			Queues:       cfg.Worker.Queues,
			Logger:       log,
		})
		a.worker.RegisterHandler(worker.JobTypeNotificationDispatch, notifications.HandleDispatch)
	}

	if cfg.RateLimit.Enabled {
		a.limiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		})
	}

	a.registerHealthChecks()
	a.router = a.routes()
	return a, nil
}

func (a *App) registerHealthChecks() {
	a.monitor.RegisterHealthCheck("database", a.deps.Pool.Health)
	a.monitor.RegisterStats("database", func(ctx context.Context) interface{} {
		return a.deps.Pool.Stats()
	})

	if a.deps.Redis != nil {
		a.monitor.RegisterHealthCheck("redis", func(ctx context.Context) error {
			return a.deps.Redis.Ping(ctx).Err()
		})
	}
	if a.cached != nil {
		a.monitor.RegisterStats("cache", func(ctx context.Context) interface{} {
			return a.cached.GetCacheStats()
		})
	}
	if a.queue != nil {
		a.monitor.RegisterStats("queue", func(ctx context.Context) interface{} {
			stats := map[string]interface{}{}
			for _, name := range a.config.Worker.Queues {
				if size, err := a.queue.GetQueueSize(ctx, name); err == nil {
					stats[name] = size
				}
			}
			if delayed, err := a.queue.GetDelayedSize(ctx); err == nil {
				stats["delayed"] = delayed
			}
			return stats
		})
	}
}

func (a *App) Handler() http.Handler {
	return a.router
}

// Start launches the background goroutines. They stop when ctx is done.
func (a *App) Start(ctx context.Context) {
	if a.worker != nil {
		a.worker.Start(ctx)
	}
	if a.cached != nil {
		a.cached.StartHousekeeping(ctx, housekeepingTick)
	}
	if a.limiter != nil {
		a.limiter.StartCleanup(ctx)
	}
}

// Run serves HTTP until ctx is cancelled or SIGINT/SIGTERM arrives, then
// shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Start(ctx)

	server := &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "addr", server.Addr, "environment", a.config.Server.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down server")
	case err := <-serverErr:
		runErr = fmt.Errorf("server failed: %w", err)
		a.log.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server shutdown failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("server shutdown failed: %w", err)
		}
	}

	stop()
	a.Close()
	a.log.Info("server shutdown completed")
	return runErr
}

// Close stops the worker and releases connections.
func (a *App) Close() {
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.deps.Redis != nil {
		if err := a.deps.Redis.Close(); err != nil {
			a.log.Warn("failed to close redis client", "error", err)
		}
	}
	if err := a.deps.Pool.Close(); err != nil {
		a.log.Warn("failed to close database pool", "error", err)
	}
}
