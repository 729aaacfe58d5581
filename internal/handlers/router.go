package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hexdecor/api/internal/platform/httpx"
	"github.com/hexdecor/api/internal/platform/observability"
	"github.com/hexdecor/api/internal/services"
)

const (
	defaultAPIPrefix = "/api/v1"
	defaultTimeout   = 60 * time.Second
)

// RouterDeps carries the services exposed over HTTP.
type RouterDeps struct {
	Orders        services.OrderService
	Payments      services.PaymentService
	Shipping      services.ShippingService
	ShippingRules services.ShippingRuleService
	Inventory     services.InventoryService
	Health        *HealthHandlers
	Metrics       *observability.Metrics
	// MetricsHandler serves /metrics; nil mounts the default promhttp handler.
	MetricsHandler http.Handler
}

type routerConfig struct {
	middlewares []func(http.Handler) http.Handler
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// NewRouter constructs the chi router with shared middleware and the full
// route surface.
func NewRouter(deps RouterDeps, opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Timeout(defaultTimeout),
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	health := deps.Health
	if health == nil {
		health = NewHealthHandlers(nil)
	}
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	orders := &OrderHandlers{orders: deps.Orders, payments: deps.Payments, metrics: deps.Metrics}
	webhooks := &WebhookHandlers{payments: deps.Payments, metrics: deps.Metrics}
	admin := &AdminHandlers{
		orders:    deps.Orders,
		payments:  deps.Payments,
		shipping:  deps.Shipping,
		inventory: deps.Inventory,
	}
	rules := &ShippingRuleHandlers{rules: deps.ShippingRules}

	r.Route(defaultAPIPrefix, func(api chi.Router) {
		api.Route("/orders", func(group chi.Router) {
			group.Post("/", orders.Create)
			group.Get("/{orderID}", orders.Get)
			group.Post("/{orderID}:confirm-payment", orders.ConfirmPayment)
		})

		api.Get("/shipping/quote", rules.Quote)

		api.Route("/admin", func(group chi.Router) {
			group.Post("/orders/{orderID}:provision-shipping", admin.ProvisionShipping)
			group.Post("/orders/{orderID}:resolve-tracking", admin.ResolveTracking)
			group.Post("/orders/{orderID}:request-pickup", admin.RequestPickup)
			group.Post("/orders/{orderID}:transition", admin.Transition)
			group.Post("/payments/{paymentID}:reconcile", admin.ReconcilePayment)
			group.Put("/products/{productID}", admin.UpsertProduct)

			group.Get("/shipping-rules", rules.List)
			group.Put("/shipping-rules/{ruleID}", rules.Upsert)
			group.Get("/shipping-rules/{ruleID}", rules.Get)
			group.Delete("/shipping-rules/{ruleID}", rules.Delete)
		})

		api.Route("/webhooks", func(group chi.Router) {
			group.Post("/payments", webhooks.Payments)
		})
	})

	return r
}
