package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/itsm-core/internal/api/http"
	"github.com/spec-kit/itsm-core/internal/api/http/handlers"
	"github.com/spec-kit/itsm-core/internal/config"
	"github.com/spec-kit/itsm-core/internal/events"
	"github.com/spec-kit/itsm-core/internal/observability"
	"github.com/spec-kit/itsm-core/internal/persistence"
	"github.com/spec-kit/itsm-core/internal/repository"
	"github.com/spec-kit/itsm-core/internal/service"
	"github.com/spec-kit/itsm-core/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	policyRepo := repository.NewSLAPolicyRepository(pool)
	breachRepo := repository.NewSLABreachRepository(pool)
	stateRepo := repository.NewEscalationStateRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:  ticketRepo,
		PolicyRepo:  policyRepo,
		HistoryRepo: historyRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	escalation := service.NewEscalationService(service.EscalationDependencies{
		TicketRepo: ticketRepo,
		PolicyRepo: policyRepo,
		BreachRepo: breachRepo,
		StateRepo:  stateRepo,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Escalation: cfg.Escalation,
	})

	notifications := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notifications.RegisterHandlers()

	evaluator := worker.NewEscalationWorker(escalation, redis, logger, cfg.Escalation)
	go evaluator.Run(ctx)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:   handlers.NewTicketsHandler(lifecycle),
		Dashboard: handlers.NewDashboardHandler(escalation),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
