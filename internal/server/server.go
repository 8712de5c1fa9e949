// Package server contains HTTP and WebSocket handlers for the forum API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	_ "bitboard/docs" // swagger docs
	"bitboard/internal/bootstrap"
	"bitboard/internal/cache"
	"bitboard/internal/config"
	"bitboard/internal/database"
	"bitboard/internal/featureflags"
	"bitboard/internal/mention"
	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/realtime"
	"bitboard/internal/repository"
	"bitboard/internal/search"
	"bitboard/internal/service"
	"bitboard/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	cache        *cache.Cache
	publisher    *realtime.Publisher
	hub          *realtime.Hub
	featureFlags *featureflags.Manager
	store        *storage.Store
	meili        *search.Meili

	authService         *service.AuthService
	userService         *service.UserService
	categoryService     *service.CategoryService
	threadService       *service.ThreadService
	postService         *service.PostService
	commentService      *service.CommentService
	reactionService     *service.ReactionService
	followService       *service.FollowService
	reportService       *service.ReportService
	moderationService   *service.ModerationService
	notificationService *service.NotificationService
	mentions            *mention.Processor
	searchService       *search.Service
}

// Option customizes optional dependencies of NewServerWithDeps.
type Option func(*Server)

// WithStorage enables avatar and media uploads.
func WithStorage(store *storage.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithMeili enables the Meilisearch search backend.
func WithMeili(m *search.Meili) Option {
	return func(s *Server) { s.meili = m }
}

// NewServer connects the runtime dependencies, object storage and the search
// engine described by cfg and builds the server on top of them. Redis, storage
// and Meilisearch are optional and skipped when not configured.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, err
	}

	var opts []Option
	if cfg.MinioEndpoint != "" {
		store, err := storage.New(storage.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("object storage: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			middleware.Logger.Warn("ensure bucket failed", slog.String("bucket", cfg.MinioBucket), slog.String("error", err.Error()))
		}
		opts = append(opts, WithStorage(store))
	}
	if cfg.MeiliURL != "" {
		opts = append(opts, WithMeili(search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)))
	}

	return NewServerWithDeps(cfg, rt.DB, rt.Redis, opts...)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis. rdb may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, rdb *redis.Client, opts ...Option) (*Server, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		promMiddleware: middleware.InitMetrics("bitboard-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	if rdb != nil {
		s.cache = cache.New(rdb)
		s.publisher = realtime.NewPublisher(rdb)
		s.hub = realtime.NewHub()
	}

	userRepo := repository.NewUserRepository(db, s.cache)
	categoryRepo := repository.NewCategoryRepository(db, s.cache)
	threadRepo := repository.NewThreadRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	reactionRepo := repository.NewReactionRepository(db)
	followRepo := repository.NewFollowRepository(db, s.cache)
	reportRepo := repository.NewReportRepository(db)
	moderationRepo := repository.NewModerationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	s.searchService = search.NewService(search.NewSQL(db), s.meili, s.featureFlags)

	var media service.MediaStore
	if s.store != nil {
		media = s.store
	}

	s.notificationService = service.NewNotificationService(notificationRepo, s.publisher, s.cache)
	s.mentions = mention.NewProcessor(userRepo, s.notificationService, postRepo, commentRepo, s.notificationService)
	s.threadService = service.NewThreadService(threadRepo, postRepo, categoryRepo, userRepo, s.mentions, s.searchService, s.publisher)
	s.postService = service.NewPostService(postRepo, threadRepo, userRepo, s.mentions, s.notificationService, s.searchService, s.publisher)
	s.commentService = service.NewCommentService(commentRepo, postRepo, threadRepo, userRepo, s.mentions, s.notificationService, s.publisher)
	s.reactionService = service.NewReactionService(reactionRepo, postRepo, commentRepo, userRepo, s.notificationService, s.publisher)
	s.followService = service.NewFollowService(followRepo, userRepo, repository.NewActivityRepository(db), s.notificationService)
	s.reportService = service.NewReportService(reportRepo, threadRepo, postRepo, commentRepo, userRepo)
	s.moderationService = service.NewModerationService(reportRepo, moderationRepo, threadRepo, postRepo, commentRepo, userRepo, s.cache, s.publisher, s.searchService)
	s.categoryService = service.NewCategoryService(categoryRepo)
	s.userService = service.NewUserService(userRepo, s.threadService, s.followService, media, s.searchService)
	s.authService = service.NewAuthService(userRepo, rdb, cfg.JWTSecret, tokenTTL(cfg), s.publisher)

	return s, nil
}

func tokenTTL(cfg *config.Config) time.Duration {
	if cfg.TokenTTLHours <= 0 {
		return service.DefaultTokenTTL
	}
	return time.Duration(cfg.TokenTTLHours) * time.Hour
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-API-Key, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "bitboard API Metrics",
	}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	authed := s.AuthRequired()
	notBanned := s.NotBanned()

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", authed, s.Logout)
	auth.Get("/session", authed, s.Session)

	api.Get("/categories", s.GetCategories)
	api.Get("/categories/:id", s.GetCategory)

	// Middleware is attached per route: a Group("", ...) under /api would
	// run for every later /api route, including the public ones.
	api.Get("/threads", s.GetThreads)
	api.Post("/threads", authed, notBanned, middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_thread"), s.CreateThread)
	api.Get("/threads/:id", s.OptionalAuth(), s.GetThread)
	api.Delete("/threads/:id", authed, notBanned, s.DeleteThread)
	api.Post("/threads/:id/posts", authed, notBanned, middleware.RateLimit(s.redis, 20, time.Minute, "create_post"), s.CreatePost)

	api.Put("/posts/:id", authed, notBanned, s.UpdatePost)
	api.Delete("/posts/:id", authed, notBanned, s.DeletePost)
	api.Get("/posts/:id/comments", s.GetComments)
	api.Post("/posts/:id/comments", authed, notBanned, middleware.RateLimit(s.redis, 20, time.Minute, "create_comment"), s.CreateComment)
	api.Post("/posts/:id/reactions", authed, notBanned, s.TogglePostReaction)

	api.Put("/comments/:id", authed, notBanned, s.UpdateComment)
	api.Delete("/comments/:id", authed, notBanned, s.DeleteComment)
	api.Post("/comments/:id/reactions", authed, notBanned, s.ToggleCommentReaction)

	users := api.Group("/users")
	users.Get("/me", authed, s.GetMyProfile)
	users.Put("/me", authed, notBanned, s.UpdateMyProfile)
	users.Post("/me/avatar", authed, notBanned, s.UploadAvatar)
	users.Get("/me/following/activity", authed, s.GetFollowingActivity)
	users.Get("/by-username/:username", s.OptionalAuth(), s.GetUserProfileByUsername)
	users.Post("/:id/follow", authed, notBanned, s.ToggleFollow)
	users.Get("/:id", authed, s.GetUserProfile)

	api.Post("/uploads", authed, notBanned, middleware.RateLimit(s.redis, 20, time.Hour, "upload"), s.UploadMedia)
	api.Post("/mentions/validate", authed, s.ValidateMentions)
	api.Post("/reports", authed, notBanned, middleware.RateLimit(s.redis, 10, time.Hour, "report"), s.CreateReport)

	notifications := api.Group("/notifications")
	notifications.Get("/", authed, s.GetNotifications)
	notifications.Get("/unread-count", authed, s.GetUnreadCount)
	notifications.Post("/read-all", authed, s.MarkAllNotificationsRead)
	notifications.Post("/:id/read", authed, s.MarkNotificationRead)

	mod := api.Group("/moderation")
	mod.Get("/reports", authed, s.GetReports)
	mod.Post("/reports/:id/resolve", authed, s.ResolveReport)
	mod.Post("/reports/:id/dismiss", authed, s.DismissReport)
	mod.Post("/content/:type/:id/delete", authed, s.DeleteContent)
	mod.Post("/users/:id/ban", authed, s.BanUser)
	mod.Post("/users/:id/unban", authed, s.UnbanUser)
	mod.Get("/actions", authed, s.GetModerationActions)

	api.Get("/search", middleware.RateLimit(s.redis, 30, time.Minute, "search"), s.OptionalAuth(), s.Search)

	api.Get("/flags", authed, s.GetFeatureFlags)
	api.Put("/flags/:name", authed, s.AdminRequired(), s.SetFeatureFlag)

	api.Post("/ws/ticket", authed, s.IssueWSTicket)
	api.Get("/ws", authed, s.WebsocketHandler())
}

// App builds a fiber app with middleware and routes; used by Start and tests.
func (s *Server) App() *fiber.App {
	bodyLimit := s.config.MaxUploadSizeMB
	if bodyLimit <= 0 {
		bodyLimit = 10
	}
	app := fiber.New(fiber.Config{
		AppName:   "bitboard API",
		BodyLimit: bodyLimit * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start wires the realtime hub to Redis and serves HTTP until shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.hub != nil && s.publisher != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.publisher); err != nil {
				middleware.Logger.Error("failed to start realtime wiring", slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
		}
	}
	s.searchService.Close()

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	searchStatus := "sql"
	if s.meili != nil && s.meili.Healthy() {
		searchStatus = "meilisearch"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
			"search":   searchStatus,
		},
		"time": time.Now().UTC(),
	})
}
