package main

import (
	"context"
	"crypto/subtle"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/config"
	"github.com/astralabs/astra-backend/pkg/errx"
	"github.com/astralabs/astra-backend/pkg/logx"
)

func main() {
	cfg := config.Load()
	logx.SetLevelFromString(cfg.App.LogLevel)

	logx.Info("Starting Astra backend...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container := NewContainer(ctx, cfg)
	defer container.Cleanup()

	app := fiber.New(fiber.Config{
		AppName:               "Astra Backend",
		DisableStartupMessage: true,
		ErrorHandler:          errx.FiberErrorHandler,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(requestid.New(requestid.Config{
		Header:    "X-Request-ID",
		Generator: uuid.NewString,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.App.CORS,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Agent-Key, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	app.Get("/health", healthCheckHandler(container))

	container.Handlers.RegisterRoutes(app,
		container.AuthMiddleware.Authenticate(),
		agentKeyMiddleware(cfg.Auth.AgentKey),
	)
	logx.Info("Rebalance routes registered")

	var revoker authx.TokenRevoker
	if container.AuthRepo != nil {
		revoker = container.AuthRepo
	}
	app.Post("/api/auth/logout", container.AuthMiddleware.Authenticate(), authx.LogoutHandler(revoker))
	logx.Info("Auth routes registered")

	app.Get("/ws", container.Gateway.UpgradeMiddleware(), container.Gateway.Handler())
	logx.Info("WebSocket gateway registered")

	app.Use(notFoundHandler)

	container.StartBackgroundServices(ctx)

	startServer(app, cfg.App.Port, cancel)
}

// agentKeyMiddleware guards the agent callback routes with a shared key. An
// empty configured key disables the check for local development.
func agentKeyMiddleware(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key == "" {
			return c.Next()
		}
		provided := c.Get("X-Agent-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid agent key")
		}
		return c.Next()
	}
}

func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "astra-backend",
		}

		if container.DB != nil {
			if err := container.DB.Ping(); err != nil {
				health["db"] = "unhealthy"
				health["status"] = "degraded"
			} else {
				health["db"] = "healthy"
			}
		}

		if _, err := container.Store.Get(c.Context(), "health:probe"); err != nil {
			health["store"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["store"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Get("X-Request-ID"),
	})
}

func startServer(app *fiber.App, port string, cancel context.CancelFunc) {
	go func() {
		logx.Infof("Server listening on port %s", port)
		if err := app.Listen(":" + port); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("Received signal: %v, shutting down...", sig)
	cancel()

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}
	logx.Info("Server exited")
}
