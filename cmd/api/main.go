package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/seed"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

type repositories struct {
	tickets       repository.TicketRepository
	comments      repository.CommentRepository
	users         repository.UserRepository
	pendingUsers  repository.PendingUserRepository
	notifications repository.NotificationRepository
	articles      repository.ArticleRepository
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

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	clk := clock.Real()
	repos := buildRepositories(pg, logger)

	if cfg.App.SeedFixtures != "" {
		if err := applyFixtures(ctx, cfg, repos, clk, logger); err != nil {
			logger.Fatal("failed to seed fixtures", zap.Error(err))
		}
	}

	var sessions auth.SessionStore
	var snapshotCache service.SnapshotCache
	if redis != nil {
		sessions = auth.NewRedisSessionStore(redis.Client, clk)
		snapshotCache = redis
	} else {
		logger.Warn("redis unavailable; sessions kept in process and analytics uncached")
		sessions = auth.NewMemorySessionStore(clk)
	}

	dispatcher := events.NewInMemoryDispatcher()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())

	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:       dispatcher,
		NotificationRepo: repos.notifications,
		UserRepo:         repos.users,
		Clock:            clk,
		Logger:           logger,
		Config:           cfg.Notification,
	})
	worker.StartNotificationWorker(notificationService, logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		CommentRepo: repos.comments,
		UserRepo:    repos.users,
		Dispatcher:  dispatcher,
		Policy:      service.TransitionPolicy{Strict: cfg.Lifecycle.StrictTransitions},
		Clock:       clk,
		Logger:      logger,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: repos.tickets,
		UserRepo:   repos.users,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	knowledgeService := service.NewKnowledgeService(service.KnowledgeDependencies{
		ArticleRepo: repos.articles,
		Dispatcher:  dispatcher,
		Clock:       clk,
		Logger:      logger,
	})
	userService := service.NewUserService(service.UserDependencies{
		UserRepo:          repos.users,
		PendingUserRepo:   repos.pendingUsers,
		Dispatcher:        dispatcher,
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		Clock:             clk,
		Logger:            logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:          repos.users,
		Sessions:          sessions,
		Tokens:            tokens,
		SessionTTL:        cfg.Auth.SessionTTL(),
		BcryptCost:        cfg.Auth.BcryptCost,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		Clock:             clk,
		Logger:            logger,
	})
	analyticsService := service.NewAnalyticsService(service.AnalyticsDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		ArticleRepo: repos.articles,
		Cache:       snapshotCache,
		CacheTTL:    cfg.Analytics.CacheTTL(),
		Clock:       clk,
		Logger:      logger,
	})

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users, sessions)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{"postgres": nil, "redis": nil}
	if pg.Enabled() {
		deps["postgres"] = pg
	}
	if redis != nil {
		deps["redis"] = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps, metrics),
		Auth:           handlers.NewAuthHandler(authService, userService),
		Tickets:        handlers.NewTicketsHandler(ticketService, assignmentService),
		Knowledge:      handlers.NewKnowledgeHandler(knowledgeService),
		Notifications:  handlers.NewNotificationsHandler(notificationService),
		Users:          handlers.NewUsersHandler(userService),
		Analytics:      handlers.NewAnalyticsHandler(analyticsService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func buildRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	if !pg.Enabled() {
		logger.Warn("running on the in-memory store; data is lost on restart")
		store := memory.NewStore()
		return repositories{
			tickets:       store.Tickets(),
			comments:      store.Comments(),
			users:         store.Users(),
			pendingUsers:  store.PendingUsers(),
			notifications: store.Notifications(),
			articles:      store.Articles(),
		}
	}
	pool := pg.PoolHandle()
	return repositories{
		tickets:       repository.NewTicketRepository(pool),
		comments:      repository.NewCommentRepository(pool),
		users:         repository.NewUserRepository(pool),
		pendingUsers:  repository.NewPendingUserRepository(pool),
		notifications: repository.NewNotificationRepository(pool),
		articles:      repository.NewArticleRepository(pool),
	}
}

func applyFixtures(ctx context.Context, cfg *config.Config, repos repositories, clk clock.Clock, logger *zap.Logger) error {
	fixtures, err := seed.Load(cfg.App.SeedFixtures)
	if err != nil {
		return err
	}
	if err := fixtures.Validate(cfg.Auth.MinPasswordLength); err != nil {
		return err
	}
	seeder := &seed.Seeder{
		Users:      repos.users,
		Tickets:    repos.tickets,
		Articles:   repos.articles,
		BcryptCost: cfg.Auth.BcryptCost,
		Clock:      clk,
		Logger:     logger,
	}
	res, err := seeder.Apply(ctx, fixtures)
	if err != nil {
		return err
	}
	logger.Info("fixtures applied",
		zap.String("path", cfg.App.SeedFixtures),
		zap.Int("users", res.UsersCreated),
		zap.Int("articles", res.ArticlesCreated),
		zap.Int("tickets", res.TicketsCreated))
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
