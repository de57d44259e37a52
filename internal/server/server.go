// Package server contains HTTP and WebSocket handlers for the stream API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	_ "hubmedia/docs" // swagger docs
	"hubmedia/internal/cache"
	"hubmedia/internal/config"
	"hubmedia/internal/database"
	"hubmedia/internal/featureflags"
	"hubmedia/internal/middleware"
	"hubmedia/internal/models"
	"hubmedia/internal/notifications"
	"hubmedia/internal/repository"
	"hubmedia/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// globalRateLimit is the per-IP request budget per minute. Polling clients hit
// status, feed and queue every few seconds.
const globalRateLimit = 300

// Server holds all dependencies and provides handlers
type Server struct {
	config            *config.Config
	db                *gorm.DB
	redis             *redis.Client
	app               *fiber.App
	promMiddleware    *fiberprometheus.FiberPrometheus
	shutdownCtx       context.Context
	shutdownFn        context.CancelFunc
	streamRepo        repository.StreamRepository
	messageRepo       repository.MessageRepository
	notifier          *notifications.Notifier
	hub               *notifications.StreamHub
	featureFlags      *featureflags.Manager
	streamService     *service.StreamService
	moderationService *service.ModerationService
	chatService       *service.ChatService
	viewerService     *service.ViewerService
	viewerSimulator   *service.ViewerSimulator
}

// NewServer connects to the database and Redis and builds a server on top of them.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Redis is optional; without it push events stay in-process.
	cache.InitRedis(cfg.RedisURL)

	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if db == nil {
		return nil, errors.New("database is required")
	}

	streamRepo := repository.NewStreamRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	statusCache := cache.NewStore(redisClient)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("hubmedia-api"),
		streamRepo:     streamRepo,
		messageRepo:    messageRepo,
		hub:            notifications.NewStreamHub(),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}

	// With Redis every instance sees every event through pub/sub; without it the hub publishes locally.
	var events service.EventPublisher = server.hub
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		events = server.notifier
	}

	server.streamService = service.NewStreamService(streamRepo, messageRepo, statusCache, events, cfg.StatusCacheTTL)
	server.moderationService = service.NewModerationService(streamRepo, messageRepo, events, cfg.MessageMaxLength)
	server.chatService = service.NewChatService(server.moderationService, streamRepo, messageRepo, events)
	server.viewerService = service.NewViewerService(streamRepo, statusCache, events)
	server.viewerSimulator = service.NewViewerSimulator(
		server.viewerService, streamRepo, server.featureFlags, cfg.ViewerTickInterval)

	return server, nil
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// App builds the fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "Hub Media API",
		BodyLimit:    64 * 1024,
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS middleware should run before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400, // 24 hours
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        globalRateLimit,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they should be handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
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

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Swagger documentation
	api.Get("/swagger/*", swagger.HandlerDefault)

	identify := middleware.OptionalAuth(s.config.JWTSecret)
	write := middleware.Auth(s.config.JWTSecret, s.config.AuthRequired)

	api.Get("/features", identify, s.GetFeatureFlags)

	streams := api.Group("/streams")
	streams.Get("/", s.ListLiveStreams)
	streams.Post("/", write, middleware.RateLimit(
		s.redis, 5, time.Minute, "start_stream"), s.StartStream)
	// Define specific routes BEFORE generic /:id route
	streams.Get("/owner/:ownerId", s.GetOwnerStreams)
	streams.Get("/:id/status", s.GetStreamStatus)
	streams.Get("/:id/viewers", s.GetViewerCount)
	streams.Get("/:id/messages", s.GetStreamMessages)
	streams.Post("/:id/messages/simulate", identify, s.SimulateStreamMessage)
	streams.Post("/:id/messages", write, middleware.RateLimitWithPolicy(
		s.redis, 30, time.Minute, middleware.FailLocal, "stream_chat"), s.SendStreamMessage)
	streams.Get("/:id/moderation", write, s.GetModerationQueue)
	streams.Put("/:id/moderation", write, s.SetStreamModeration)
	streams.Post("/:id/end", write, s.EndStream)
	streams.Get("/:id", s.GetStream)

	moderation := api.Group("/moderation", write)
	moderation.Post("/:messageId/approve", s.ApproveMessage)
	moderation.Post("/:messageId/reject", s.RejectMessage)

	// Push endpoints; polling stays the contract
	ws := api.Group("/ws")
	ws.Get("/streams/:id", identify, s.StreamFeedSocket())
	ws.Get("/streams/:id/moderation", write, s.StreamModerationSocket())
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
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

	// Redis only carries cache and pub/sub, so its absence degrades instead of failing.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case dbStatus == "unhealthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus == "unavailable":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// Start wires the push hub and serves HTTP until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	if s.notifier != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
		}
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// RunViewerSimulator ticks live streams until ctx is cancelled.
func (s *Server) RunViewerSimulator(ctx context.Context) error {
	return s.viewerSimulator.Run(ctx)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop the Redis subscriber
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	// Close WebSocket connections before the listener so clients see a going-away frame
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			log.Printf("error shutting down %s: %v", s.hub.Name(), err)
		}
	}

	// Shutdown the HTTP/WS server
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := database.Close(s.db); err != nil {
		log.Printf("error closing sql DB: %v", err)
	}

	// Close Redis connection
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
