// Package web provides the HTTP API surface.
// All endpoints except /healthz and /metrics require a bearer token.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/meterly/subgate/adapters/auth"
	"github.com/meterly/subgate/app"
	"github.com/meterly/subgate/ports"
)

// Handler provides the API endpoints.
type Handler struct {
	gate      *app.GateService
	generator *app.GenerateService
	usage     ports.UsageResolver
	products  ports.ProductResolver
	tokens    *auth.TokenService
	logger    zerolog.Logger
	metrics   http.Handler
	startTime time.Time
}

// Deps contains dependencies for the API handler.
type Deps struct {
	Gate      *app.GateService
	Generator *app.GenerateService
	Usage     ports.UsageResolver
	Products  ports.ProductResolver
	Tokens    *auth.TokenService
	Logger    zerolog.Logger

	// MetricsHandler serves /metrics when non-nil.
	MetricsHandler http.Handler
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		gate:      deps.Gate,
		generator: deps.Generator,
		usage:     deps.Usage,
		products:  deps.Products,
		tokens:    deps.Tokens,
		logger:    deps.Logger,
		metrics:   deps.MetricsHandler,
		startTime: time.Now(),
	}
}

// DefaultMetricsHandler serves the default Prometheus registry.
func DefaultMetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Router returns the API router.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Unauthenticated
	r.Get("/healthz", h.Healthz)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics)
	}

	// Protected endpoints (require bearer token)
	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/v1/subscription", h.Subscription)
		r.Get("/v1/subscription/usage", h.SubscriptionUsage)
		r.Post("/v1/generate", h.Generate)
		r.Get("/v1/documents", h.Documents)
		r.Get("/v1/products/{id}", h.Product)
	})

	return r
}
