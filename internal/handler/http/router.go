package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/catalog"
	"github.com/utafrali/storefront/internal/notify"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

const serviceName = "storefront"

// Deps are the services the router exposes.
type Deps struct {
	Catalog     *catalog.Registry
	Products    service.ProductSource
	Carts       *service.CartService
	Checkout    *service.CheckoutService
	Broadcaster *notify.Broadcaster
	Health      *health.Handler

	PageSize       int
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

// NewRouter creates a chi router with all storefront routes registered.
// Background work owned by the router stops when ctx is done.
func NewRouter(ctx context.Context, deps Deps, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.CORS(deps.AllowedOrigins))
	r.Use(middleware.Session())
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	catalogHandler := NewCatalogHandler(deps.Catalog, deps.Products, deps.PageSize, logger)
	cartHandler := NewCartHandler(deps.Carts, logger)
	checkoutHandler := NewCheckoutHandler(deps.Checkout, logger)
	eventsHandler := NewEventsHandler(deps.Broadcaster, deps.Carts, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, deps.RateLimitRPS, deps.RateLimitBurst, logger))

		// Long-lived stream: no compression, no request timeout.
		r.With(middleware.RequireSession()).Get("/cart/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(30 * time.Second))
			r.Use(ContentTypeJSON)

			r.Get("/products", catalogHandler.ListProducts)
			r.Post("/products/retry", catalogHandler.Retry)
			r.Get("/products/{id}", catalogHandler.GetProduct)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSession())
				r.Use(middleware.CacheControl("no-store"))

				r.Get("/cart", cartHandler.GetCart)
				r.Delete("/cart", cartHandler.ClearCart)
				r.Get("/cart/summary", cartHandler.GetSummary)
				r.Post("/cart/items", cartHandler.AddItem)
				r.Put("/cart/items/{id}", cartHandler.UpdateItemQuantity)
				r.Delete("/cart/items/{id}", cartHandler.RemoveItem)

				r.Post("/checkout", checkoutHandler.Begin)
				r.Get("/checkout", checkoutHandler.Get)
				r.Put("/checkout/customer", checkoutHandler.SubmitCustomer)
				r.Put("/checkout/payment", checkoutHandler.SubmitPayment)
				r.Post("/checkout/back", checkoutHandler.Back)
				r.Post("/checkout/card-number", checkoutHandler.FormatCardNumber)
			})
		})
	})

	return r
}
