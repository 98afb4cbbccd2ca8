package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Comments       *handlers.CommentsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes under the /api prefix.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)
	authGroup.Post("/refresh", cfg.Users.Refresh)
	authGroup.Post("/logout", cfg.Users.Logout)
	authGroup.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)

	tickets := api.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	// stats before :id so the literal segment is not captured as a ticket id
	tickets.Get("/stats", cfg.Tickets.GetStats)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Delete("/:id", auth.RequireAdmin(), cfg.Tickets.DeleteTicket)
	tickets.Put("/:id/assign", auth.RequireAgentOrAdmin(), cfg.Tickets.AssignTicket)
	tickets.Post("/:id/rate", cfg.Tickets.RateTicket)
	tickets.Post("/:id/attachments", cfg.Tickets.UploadAttachment)

	tickets.Get("/:id/comments", cfg.Comments.ListComments)
	tickets.Post("/:id/comments", cfg.Comments.AddComment)
	tickets.Put("/:id/comments/:commentId", cfg.Comments.UpdateComment)
	tickets.Delete("/:id/comments/:commentId", cfg.Comments.DeleteComment)

	// agents is open to any authenticated caller, so it sits outside the
	// admin group; registered before /:id to keep the literal segment.
	api.Get("/users/agents", cfg.AuthMiddleware.Handle, cfg.Users.ListAgents)

	users := api.Group("/users", cfg.AuthMiddleware.Handle, auth.RequireAdmin())
	users.Get("/", cfg.Users.ListUsers)
	users.Post("/", cfg.Users.CreateUser)
	users.Get("/:id", cfg.Users.GetUser)
	users.Put("/:id", cfg.Users.UpdateUser)
	users.Delete("/:id", cfg.Users.DeleteUser)
}
