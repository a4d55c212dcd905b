package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Guard          *auth.Guard
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	admin := auth.RequireAdmin(cfg.Guard)

	protected.Get("/health/metrics", admin, cfg.Health.Metrics)
	protected.Get("/notifications", cfg.Notifications.List)

	tickets := protected.Group("/tickets")
	tickets.Get("/", admin, cfg.Tickets.ListAll)
	tickets.Post("/", cfg.Tickets.Submit)
	tickets.Get("/me", cfg.Tickets.ListOwn)
	tickets.Get("/owner/:ownerId", cfg.Tickets.ListForOwner)
	tickets.Post("/:id/reply", admin, cfg.Tickets.Reply)
	tickets.Put("/:id/resolve", admin, cfg.Tickets.Resolve)
	tickets.Delete("/:id", admin, cfg.Tickets.Delete)
	tickets.Get("/:id/messages", cfg.Tickets.ListMessages)
	tickets.Post("/:id/messages", cfg.Tickets.AppendMessage)
	tickets.Delete("/:id/messages", cfg.Tickets.ClearMessages)
}
