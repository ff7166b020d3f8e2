package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Knowledge      *handlers.KnowledgeHandler
	Notifications  *handlers.NotificationsHandler
	Users          *handlers.UsersHandler
	Analytics      *handlers.AnalyticsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	requireAuth := cfg.AuthMiddleware.Handle
	authGroup.Post("/logout", requireAuth, cfg.Auth.Logout)
	authGroup.Get("/me", requireAuth, cfg.Auth.Me)
	authGroup.Post("/password/change", requireAuth, cfg.Auth.ChangePassword)

	tickets := app.Group("/tickets", requireAuth)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/assignees", auth.RequireStaff(), cfg.Tickets.ListAssignees)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequireAdmin(), cfg.Tickets.DeleteTicket)
	tickets.Post("/:id/take", auth.RequireStaff(), cfg.Tickets.TakeTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)

	notifications := app.Group("/notifications", requireAuth)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	kb := app.Group("/knowledge-base", requireAuth)
	kb.Get("/", cfg.Knowledge.ListArticles)
	kb.Post("/", auth.RequireStaff(), cfg.Knowledge.CreateArticle)
	kb.Get("/:id", cfg.Knowledge.GetArticle)
	kb.Put("/:id", auth.RequireStaff(), cfg.Knowledge.UpdateArticle)
	kb.Delete("/:id", auth.RequireStaff(), cfg.Knowledge.DeleteArticle)
	kb.Post("/:id/vote", cfg.Knowledge.Vote)

	users := app.Group("/users", requireAuth, auth.RequireAdmin())
	users.Get("/", cfg.Users.List)
	users.Post("/", cfg.Users.Create)
	users.Get("/pending", cfg.Users.ListPending)
	users.Post("/pending/:id/approve", cfg.Users.Approve)
	users.Post("/pending/:id/reject", cfg.Users.Reject)
	users.Get("/:id", cfg.Users.Get)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)

	app.Get("/analytics", requireAuth, auth.RequireAdmin(), cfg.Analytics.Report)
}
