package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/touripk/support-desk/internal/api/http"
	"github.com/touripk/support-desk/internal/api/http/handlers"
	"github.com/touripk/support-desk/internal/auth"
	"github.com/touripk/support-desk/internal/config"
	"github.com/touripk/support-desk/internal/events"
	"github.com/touripk/support-desk/internal/mailer"
	"github.com/touripk/support-desk/internal/observability"
	"github.com/touripk/support-desk/internal/persistence"
	"github.com/touripk/support-desk/internal/repository"
	"github.com/touripk/support-desk/internal/service"
	"github.com/touripk/support-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var (
		repos repository.Repositories
		tx    repository.TxRunner
	)
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewRepositories(pool)
		tx = repository.NewTxRunner(pool)
	} else {
		store := repository.NewMemoryStore()
		repos = store.Repositories()
		tx = store
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		limiterStore goredis.UniversalClient
		sweepLock    worker.Locker
	)
	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redis.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable; rate limits and escalation sweeps are per process", zap.Error(err))
	} else {
		limiterStore = redis.Client
		sweepLock = redis
	}
	pingCancel()

	dispatcher := events.NewInMemoryDispatcher()

	var mail mailer.Mailer
	if cfg.Notification.MailEnabled() {
		mail = mailer.NewSMTPMailer(cfg.Notification)
	}
	var sink events.Sink
	if cfg.Kafka.Enabled() {
		kafkaSink := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafkaSink.Close() //nolint:errcheck
		sink = kafkaSink
	}
	service.NewNotificationService(dispatcher, logger, cfg.Notification, mail, sink).RegisterHandlers()

	ticketService := service.NewTicketService(service.TicketDependencies{
		Repos:      repos,
		Tx:         tx,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Clock:      service.SystemClock,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(repos.Users, tokens)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.Users, repos.Companies)

	sweeper := worker.NewEscalationSweeper(ticketService, sweepLock, logger,
		cfg.Escalation.SweepInterval(), cfg.Escalation.LockTTL(), cfg.Escalation.SweepBatchSize)
	go sweeper.Run(ctx)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, service.SystemClock),
		Operator:       handlers.NewOperatorTicketsHandler(ticketService, service.SystemClock),
		AuthMiddleware: authMiddleware,
		TicketCreateLimiter: httptransport.NewTicketCreateLimiter(limiterStore,
			cfg.RateLimit.TicketCreateMax, time.Duration(cfg.RateLimit.TicketCreateWindow)*time.Second),
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
