package api

import (
	"context"
	"log/slog"
	"time"

	swagger "github.com/go-swagno/swagno-fiber/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/api/docs"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/api/handler"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/api/middleware"
	"github.com/ShanmugaRamana/ProjectRakshak-V1/internal/ws"
)

type Dependencies struct {
	Verifier       handler.Verifier
	Cameras        handler.CameraLister
	Frames         handler.FrameStreamer
	Coordinator    handler.MatchCoordinator
	Registry       handler.RegistrySizer
	CheckDB        handler.DatabaseChecker
	Hub            *ws.Hub
	StreamInterval time.Duration
	// VerifyRateLimit is the number of verification requests allowed per client IP per minute
	VerifyRateLimit int
}

type Router struct {
	app         *fiber.App
	logger      *slog.Logger
	deps        *Dependencies
	rateLimiter *middleware.RateLimiter
	cancel      context.CancelFunc
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Rakshak API",
		BodyLimit:    80 * 1024 * 1024, // up to 7 images of 10MB
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	// Global middlewares
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Swagger documentation
	sw := docs.NewSwagger()
	swagger.SwaggerHandler(r.app, sw.MustToJson())

	healthHandler := handler.NewHealthHandler(r.deps.CheckDB, r.deps.Registry)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	v1 := r.app.Group("/v1")

	// Streams end on shutdown
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	// Enrollment checks are rate limited per client IP
	r.rateLimiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Max:    r.deps.VerifyRateLimit,
		Window: time.Minute,
	})
	enrollmentHandler := handler.NewEnrollmentHandler(r.deps.Verifier, r.logger)
	v1.Post("/enroll/verify", r.rateLimiter.Handler(), enrollmentHandler.Verify)
	v1.Post("/detect", r.rateLimiter.Handler(), enrollmentHandler.Detect)

	cameraHandler := handler.NewCameraHandler(ctx, r.deps.Cameras, r.deps.Frames, r.deps.StreamInterval, r.logger)
	v1.Get("/cameras", cameraHandler.List)
	v1.Get("/cameras/:id/stream", cameraHandler.Stream)

	searchHandler := handler.NewSearchHandler(r.deps.Coordinator, r.deps.Hub, r.logger)
	v1.Post("/search-status", searchHandler.UpdateStatus)
	v1.Get("/matches", searchHandler.Matches)

	// WebSocket endpoint
	v1.Get("/ws", ws.UpgradeMiddleware(), ws.Handler(r.deps.Hub))
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	// End MJPEG streams
	if r.cancel != nil {
		r.cancel()
	}

	// Stop rate limiter cleanup goroutine
	if r.rateLimiter != nil {
		r.rateLimiter.Stop()
	}

	return r.app.Shutdown()
}
