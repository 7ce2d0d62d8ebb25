package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/deskline/helpdesk/internal/api/http/handlers"
	"github.com/deskline/helpdesk/internal/auth"
	"github.com/deskline/helpdesk/internal/domain"
	"github.com/deskline/helpdesk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Typing         *handlers.TypingHandler
	Presence       *handlers.PresenceHandler
	Comments       *handlers.CommentsHandler
	Auth           *handlers.AuthHandler
	Feed           *handlers.FeedHandler
	AuthMiddleware *auth.AuthMiddleware
	// LoginLimiter, when set, throttles POST /api/auth/login.
	LoginLimiter   *auth.LoginLimiter
	Metrics        *observability.Metrics
	MetricsPath    string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(cfg.Metrics.Handler())
		app.Get(path, func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	api := app.Group("/api")
	login := []fiber.Handler{cfg.Auth.Login}
	if cfg.LoginLimiter != nil {
		login = append([]fiber.Handler{cfg.LoginLimiter.Handle}, login...)
	}
	api.Post("/auth/login", login...)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	editor := auth.RequireEditor()
	admin := auth.RequireRole(domain.AgentRoleAdmin)

	protected.Get("/auth/login-attempts", admin, cfg.Auth.LoginAttempts)
	protected.Post("/agents", admin, cfg.Auth.CreateAgent)

	protected.Get("/tickets", cfg.Tickets.ListTickets)
	protected.Post("/tickets", editor, cfg.Tickets.CreateTicket)
	protected.Get("/tickets/:id", cfg.Tickets.GetTicket)
	protected.Patch("/tickets/:id", editor, cfg.Tickets.UpdateTicket)
	protected.Post("/tickets/:id/assign-self", editor, cfg.Tickets.AssignToSelf)
	protected.Get("/tickets/:id/version", cfg.Tickets.GetVersion)
	protected.Get("/tickets/:id/history", cfg.Tickets.ListHistory)

	protected.Get("/tickets/:id/typing", cfg.Typing.ListTyping)
	protected.Put("/tickets/:id/typing", editor, cfg.Typing.SetTyping)

	protected.Get("/tickets/:id/comments", cfg.Comments.ListComments)
	protected.Post("/tickets/:id/comments", editor, cfg.Comments.AddComment)

	if cfg.Feed != nil {
		protected.Get("/tickets/:id/feed", cfg.Feed.Upgrade, cfg.Feed.Stream())
	}

	protected.Get("/presence", cfg.Presence.GetOwn)
	protected.Put("/presence", cfg.Presence.Set)
	protected.Get("/presence/:userId", cfg.Presence.Get)
}
