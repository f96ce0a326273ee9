package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-premerge/internal/api/http/handlers"
	"github.com/spec-kit/ticket-premerge/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Runs           *handlers.RunsHandler
	AuthMiddleware *auth.AuthMiddleware
	// MetricsGatherer backs /metrics; nil disables the endpoint.
	MetricsGatherer prometheus.Gatherer
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.MetricsGatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	runs := app.Group("/runs", cfg.AuthMiddleware.Handle)
	runs.Get("/", auth.RequireRole(auth.RoleOperator, auth.RoleViewer), cfg.Runs.List)
	runs.Get("/latest", auth.RequireRole(auth.RoleOperator, auth.RoleViewer), cfg.Runs.Latest)
	runs.Get("/:id", auth.RequireRole(auth.RoleOperator, auth.RoleViewer), cfg.Runs.Get)
	runs.Post("/", auth.RequireRole(auth.RoleOperator), cfg.Runs.Trigger)
}
