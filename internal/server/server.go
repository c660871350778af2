package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/rs/zerolog"

	"rankguard/internal/config"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App *fiber.App
	Cfg *config.Config
	log zerolog.Logger
}

// New creates a new server with middleware configured.
func New(cfg *config.Config, log zerolog.Logger) *Server {
	log = log.With().Str("component", "http").Logger()

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		AppName: "rankguard",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal Server Error"

			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
				message = e.Message
			}
			if code >= fiber.StatusInternalServerError {
				log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
			}

			return c.Status(code).JSON(fiber.Map{
				"status": "error",
				"error":  message,
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())

	if origins := cfg.CORSOriginsList(); len(origins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
			MaxAge:       86400,
		}))
	}

	return &Server{
		App: app,
		Cfg: cfg,
		log: log,
	}
}

// RateLimiter limits /api requests per client IP. Counters live in Redis when
// REDIS_URL is set so that replicas share them, in memory otherwise.
func (s *Server) RateLimiter() fiber.Handler {
	cfg := limiter.Config{
		Max:        s.Cfg.RateLimit,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"status": "error",
				"error":  "Rate limit exceeded. Please try again later.",
			})
		},
	}
	if s.Cfg.RedisURL != "" {
		cfg.Storage = redis.New(redis.Config{URL: s.Cfg.RedisURL})
		s.log.Info().Msg("rate limiter using redis storage")
	}
	return limiter.New(cfg)
}

// Start starts the server on the configured address.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.Cfg.ServerAddr).Msg("starting server")
	return s.App.Listen(s.Cfg.ServerAddr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.App.ShutdownWithContext(ctx)
}
