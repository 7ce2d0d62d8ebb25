package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/deskline/helpdesk/internal/api/http"
	"github.com/deskline/helpdesk/internal/api/http/handlers"
	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/clock"
	"github.com/deskline/helpdesk/internal/config"
	"github.com/deskline/helpdesk/internal/events"
	"github.com/deskline/helpdesk/internal/observability"
	"github.com/deskline/helpdesk/internal/persistence"
	"github.com/deskline/helpdesk/internal/repository"
	"github.com/deskline/helpdesk/internal/repository/memory"
	"github.com/deskline/helpdesk/internal/service"
	"github.com/deskline/helpdesk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// stores groups the relational repositories so main can pick Postgres or
// the in-memory fallback in one place.
type stores struct {
	tickets  repository.TicketRepository
	history  repository.TicketHistoryRepository
	agents   repository.AgentRepository
	comments repository.CommentRepository
	attempts repository.LoginAttemptRepository
}

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
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	repos := newStores(pg, logger)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		HistoryRepo: repos.history,
		AgentRepo:   repos.agents,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
		Logger:      logger,
	})
	typingService := service.NewTypingService(service.TypingDependencies{
		TypingRepo: repository.NewTypingRepository(redis.Handle()),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Clock:      clock.Real(),
		TTL:        cfg.Collab.TypingTTL(),
		Logger:     logger,
	})
	presenceService := service.NewPresenceService(repository.NewPresenceRepository(redis.Handle()), dispatcher, logger)
	commentService := service.NewCommentService(service.CommentDependencies{
		CommentRepo: repos.comments,
		TicketRepo:  repos.tickets,
		AgentRepo:   repos.agents,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		AgentRepo:        repos.agents,
		LoginAttemptRepo: repos.attempts,
		TokenManager:     tokens,
		Logger:           logger,
	})

	if cfg.Auth.AdminEmail != "" {
		if _, _, err := authService.EnsureAdmin(ctx, cfg.Auth.AdminName, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			logger.Fatal("failed to create bootstrap admin", zap.Error(err))
		}
	}

	notificationService := service.NewNotificationService(dispatcher, redis.Handle(), logger)
	worker.StartNotificationWorker(notificationService)

	dependencies := map[string]handlers.Pinger{"redis": redis}
	if pg.PoolHandle() != nil {
		dependencies["postgres"] = pg
	}

	app := httptransport.NewApp(httptransport.AppOptions{
		Name:  cfg.App.Name,
		Quiet: cfg.App.Env == "production",
	}, logger, metrics)
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Typing:         handlers.NewTypingHandler(typingService),
		Presence:       handlers.NewPresenceHandler(presenceService),
		Comments:       handlers.NewCommentsHandler(commentService),
		Auth:           handlers.NewAuthHandler(authService),
		Feed:           handlers.NewFeedHandler(ticketService, redis.Handle(), logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.agents),
		LoginLimiter:   auth.NewLoginLimiter(cfg.Auth.LoginPerMinute, cfg.Auth.LoginBurst),
	}
	if cfg.Metrics.Enabled {
		routes.Metrics = metrics
		routes.MetricsPath = cfg.Metrics.Path
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func newStores(pg *persistence.Postgres, logger *zap.Logger) stores {
	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("using in-memory ticket storage; data is lost on restart")
		return stores{
			tickets:  memory.NewTicketRepository(),
			history:  memory.NewHistoryRepository(),
			agents:   memory.NewAgentRepository(),
			comments: memory.NewCommentRepository(),
			attempts: memory.NewLoginAttemptRepository(),
		}
	}
	return stores{
		tickets:  repository.NewTicketRepository(pool),
		history:  repository.NewTicketHistoryRepository(pool),
		agents:   repository.NewAgentRepository(pool),
		comments: repository.NewCommentRepository(pool),
		attempts: repository.NewLoginAttemptRepository(pool),
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
