package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	JWTSecret      []byte
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Metrics        *metrics.ServerMetrics
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
}

type Handlers struct {
	Session  *SessionHandler
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Payment  *PaymentHandler
	Orders   *OrdersHandler
	Admin    *AdminHandler
}

func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.Admin.Health)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// called by the gateway, verified by payload signature
		r.Route("/payments", func(r chi.Router) {
			r.Post("/razorpay/callback", h.Payment.RazorpayCallback)
			r.Post("/midtrans/notification", h.Payment.MidtransNotification)
		})

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(cfg.JWTSecret))

			r.Post("/session", h.Session.Start)
			r.Delete("/session", h.Session.End)
			r.Get("/notifications", h.Session.Notifications)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{item_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{item_id}", h.Cart.RemoveItem)
			})

			r.Post("/checkout", h.Checkout.PlaceOrder)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Get("/{order_id}", h.Orders.GetOrder)
			})

			r.Get("/reconciliation/cases", h.Admin.ListCases)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
