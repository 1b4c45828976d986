// Package server exposes the board's trust and moderation operations over
// HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lionboard/internal/cache"
	"lionboard/internal/config"
	"lionboard/internal/contentsafety"
	"lionboard/internal/database"
	"lionboard/internal/jobs"
	"lionboard/internal/middleware"
	"lionboard/internal/models"
	"lionboard/internal/observability"
	"lionboard/internal/repository"
	"lionboard/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const screeningQueueName = "screening"

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	limiter        *middleware.Limiter

	queue  jobs.Queue
	worker *jobs.Worker
	cron   *cron.Cron

	roleService      *service.RoleService
	auditService     *service.AuditService
	identityService  *service.IdentityService
	redactionService *service.RedactionService
	screeningService *service.ScreeningService
	contentService   *service.ContentService
	expiryService    *service.ExpiryService
}

// Option customizes a Server built by NewServerWithDeps.
type Option func(*serverOptions)

type serverOptions struct {
	screener contentsafety.Screener
	queue    jobs.Queue
}

// WithScreener replaces the moderation API client.
func WithScreener(sc contentsafety.Screener) Option {
	return func(o *serverOptions) { o.screener = sc }
}

// WithQueue replaces the screening job queue.
func WithQueue(q jobs.Queue) Option {
	return func(o *serverOptions) { o.queue = q }
}

// NewServer connects to the database and Redis named by cfg.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	redisClient, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		// Redis is optional: screening falls back to an in-process queue and
		// pseudonyms are read straight from the database.
		observability.Logger.WarnContext(ctx, "redis unavailable, continuing without it", slog.String("error", err.Error()))
		redisClient = nil
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("server: config and database are required")
	}

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.screener == nil {
		o.screener = contentsafety.NewClient(contentsafety.Options{
			APIKey:   cfg.ModerationKey(),
			Endpoint: cfg.ModerationAPIURL,
			Model:    cfg.ModerationModel,
			Timeout:  cfg.ModerationTimeout,
		})
	}
	if o.queue == nil {
		if redisClient != nil {
			o.queue = jobs.NewRedisQueue(redisClient, screeningQueueName)
		} else {
			o.queue = jobs.NewMemoryQueue()
		}
	}

	userRepo := repository.NewUserRepository(db)
	threadRepo := repository.NewThreadRepository(db)
	answerRepo := repository.NewAnswerRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	identityRepo := repository.NewThreadIdentityRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("lionboard-api"),
		limiter:        middleware.NewLimiter(redisClient, cfg.Env),
		queue:          o.queue,
		worker: jobs.NewWorker(o.queue, jobs.WorkerOptions{
			Name:         screeningQueueName,
			Policy:       jobs.RetryPolicy{MaxAttempts: cfg.ScreeningAttempts, Delay: cfg.ScreeningRetry},
			PollInterval: cfg.ScreeningPoll,
		}),
	}

	s.roleService = service.NewRoleService(userRepo, cfg.ModeratorEmailList())
	s.auditService = service.NewAuditService(auditRepo)
	s.identityService = service.NewIdentityService(identityRepo, userRepo, threadRepo, redisClient)
	s.redactionService = service.NewRedactionService(db, threadRepo, answerRepo, userRepo, s.auditService, s.roleService.CanModerate)
	s.screeningService = service.NewScreeningService(threadRepo, o.screener, s.worker)
	s.contentService = service.NewContentService(db, threadRepo, answerRepo, commentRepo, userRepo,
		s.identityService, s.auditService, s.screeningService)
	s.expiryService = service.NewExpiryService(threadRepo, redisClient)

	s.worker.Handle(service.ScreenThreadJob, s.screeningService.HandleJob)
	return s, nil
}

// App builds the Fiber application once and returns it.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}

	app := fiber.New(fiber.Config{
		AppName: "Lionboard API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(middleware.StructuredLogger())
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api", middleware.AuthRequired(s.config.JWTSecret))

	threads := api.Group("/threads")
	threads.Post("/", s.limiter.RateLimit("create_thread", 10, time.Minute, middleware.FailOpen), s.CreateThread)
	threads.Post("/:id/answers", s.limiter.RateLimit("create_answer", 30, time.Minute, middleware.FailOpen), s.CreateAnswer)
	threads.Post("/:id/comments", s.limiter.RateLimit("create_comment", 30, time.Minute, middleware.FailOpen), s.CreateComment)
	threads.Get("/:id/identity", s.GetThreadIdentity)
	threads.Get("/:id/identities", s.ListThreadIdentities)
	threads.Post("/:id/reveal", s.RevealIdentity(models.ContentThread))
	threads.Post("/:id/hide", s.HideIdentity(models.ContentThread))

	answers := api.Group("/answers")
	answers.Post("/:id/reveal", s.RevealIdentity(models.ContentAnswer))
	answers.Post("/:id/hide", s.HideIdentity(models.ContentAnswer))

	moderation := api.Group("/moderation")
	moderation.Get("/threads", s.GetModerationQueue)
	moderation.Patch("/:kind/:id/redact", s.RedactContent)
	moderation.Patch("/:kind/:id/unredact", s.UnredactContent)
	moderation.Get("/:kind/:id/audit", s.GetAuditEntries)
}

// Run serves HTTP, runs the screening worker and the expiry schedule until
// ctx is cancelled, then shuts everything down.
func (s *Server) Run(ctx context.Context) error {
	app := s.App()

	s.cron = cron.New()
	if spec := s.config.ThreadExpirySchedule; spec != "" {
		if _, err := s.expiryService.Schedule(ctx, s.cron, spec); err != nil {
			return fmt.Errorf("schedule thread expiry: %w", err)
		}
	}
	s.cron.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		observability.Logger.InfoContext(gctx, "server starting", slog.String("port", s.config.Port))
		return app.Listen(":" + s.config.Port)
	})
	g.Go(func() error {
		return s.worker.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server, the scheduler and the
// connections.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.ErrorContext(ctx, "error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.Logger.ErrorContext(ctx, "error closing sql DB", slog.String("error", cerr.Error()))
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.Logger.ErrorContext(ctx, "error closing redis", slog.String("error", rerr.Error()))
		}
	}
	observability.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
