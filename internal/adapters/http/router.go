package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/saferoute/internal/pkg/metrics"
)

// RouterConfig tunes SetupRoutes.
type RouterConfig struct {
	Version     string
	PlanTimeout time.Duration // per-request deadline for planning endpoints
	RateLimit   int           // requests per minute per IP; zero disables
	SpecPath    string
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, cfg RouterConfig) {
	if cfg.PlanTimeout <= 0 {
		cfg.PlanTimeout = 35 * time.Second
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting per IP
	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", cfg.Version)
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(cfg.Version))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Post("/plans", timeout.NewWithContext(PlanHandler(deps), cfg.PlanTimeout))
	v1.Get("/risk/location", timeout.NewWithContext(RiskLocationHandler(deps), 15*time.Second))
	v1.Get("/risk/scores", timeout.NewWithContext(RiskScoresHandler(deps), 15*time.Second))
	v1.Get("/risk/states", timeout.NewWithContext(RiskStatesHandler(deps), 15*time.Second))
	v1.Get("/risk/districts", timeout.NewWithContext(RiskDistrictsHandler(deps), 15*time.Second))

	// Unversioned routes kept for old clients
	legacy := app.Group("/risk", DeprecationMiddleware(LegacyRiskRoutes))
	legacy.Get("/location", RiskLocationHandler(deps))
	legacy.Get("/scores", RiskScoresHandler(deps))

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), cfg.PlanTimeout))

	SetupDocs(app, cfg.SpecPath)

	// WebSocket plan progress stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/plan", websocket.New(PlanStreamHandler(deps.Planner, cfg.PlanTimeout)))
}
