package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/taskminder-go-api/internal/config"
	"github.com/noah-isme/taskminder-go-api/internal/handler"
	"github.com/noah-isme/taskminder-go-api/internal/middleware"
	"github.com/noah-isme/taskminder-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	TeacherHandler      *handler.TeacherHandler
	TaskHandler         *handler.TaskHandler
	SettingsHandler     *handler.SettingsHandler
	NotificationHandler *handler.NotificationHandler
	SystemHandler       *handler.SystemHandler
	DB                  handler.Pinger
	Queue               handler.QueueLen
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.DB, deps.Queue))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.TeacherHandler != nil {
		deps.TeacherHandler.Register(api.Group("/teachers", jwtMiddleware))
	}

	if deps.TaskHandler != nil {
		deps.TaskHandler.Register(api.Group("/tasks", jwtMiddleware))
	}

	if deps.SettingsHandler != nil {
		deps.SettingsHandler.Register(api.Group("/settings", jwtMiddleware))
	}

	if deps.NotificationHandler != nil {
		notifications := api.Group("/notifications", jwtMiddleware)
		notifications.Post("/test",
			middleware.RateLimit("notifications-test", cfg.TestNotifyRateLimit, time.Minute),
			deps.NotificationHandler.SendTest,
		)
		deps.NotificationHandler.Register(notifications)
	}

	if deps.SystemHandler != nil {
		deps.SystemHandler.Register(api.Group("/system", jwtMiddleware))
	}
}
