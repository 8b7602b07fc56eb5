package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/touripk/support-desk/internal/api/http/handlers"
	"github.com/touripk/support-desk/internal/auth"
	"github.com/touripk/support-desk/internal/domain"
	"github.com/touripk/support-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health              *handlers.HealthHandler
	Auth                *handlers.AuthHandler
	Tickets             *handlers.TicketsHandler
	Operator            *handlers.OperatorTicketsHandler
	AuthMiddleware      *auth.AuthMiddleware
	TicketCreateLimiter fiber.Handler
	Metrics             *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	support := app.Group("/support", cfg.AuthMiddleware.Handle)

	createChain := []fiber.Handler{auth.RequireRole(domain.RoleCustomer)}
	if cfg.TicketCreateLimiter != nil {
		createChain = append(createChain, cfg.TicketCreateLimiter)
	}
	createChain = append(createChain, cfg.Tickets.CreateTicket)
	support.Post("/tickets", createChain...)
	support.Get("/tickets", auth.RequireRole(domain.RoleCustomer), cfg.Tickets.ListMyTickets)

	support.Get("/company/tickets", auth.RequireRole(domain.RoleCompany), cfg.Operator.ListCompanyTickets)
	support.Get("/admin/tickets", auth.RequireRole(domain.RoleAdmin), cfg.Operator.ListAdminTickets)

	tickets := support.Group("/tickets/:reference")
	tickets.Get("", cfg.Tickets.GetTicket)
	tickets.Get("/history", cfg.Tickets.History)
	tickets.Post("/messages", cfg.Tickets.AddMessage)
	tickets.Post("/escalate", cfg.Tickets.Escalate)
	tickets.Post("/resolve", cfg.Tickets.Resolve)
}
