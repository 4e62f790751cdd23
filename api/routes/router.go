package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sameerdalvi/bazario-backend/api/controllers"
	"github.com/sameerdalvi/bazario-backend/api/middleware"
	checkoutsvc "github.com/sameerdalvi/bazario-backend/internal/checkout"
	disputesvc "github.com/sameerdalvi/bazario-backend/internal/disputes"
	ordersvc "github.com/sameerdalvi/bazario-backend/internal/orders"
	"github.com/sameerdalvi/bazario-backend/pkg/config"
	"github.com/sameerdalvi/bazario-backend/pkg/db"
	"github.com/sameerdalvi/bazario-backend/pkg/enums"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/metrics"
	"github.com/sameerdalvi/bazario-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	httpMetrics *metrics.HTTPMetrics,
	checkoutService *checkoutsvc.Service,
	ordersService *ordersvc.Service,
	disputesService *disputesvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.CreateOrder(checkoutService, logg))
			r.Post("/quote", controllers.QuoteOrder(checkoutService, logg))
			r.Get("/my-orders", controllers.MyOrders(ordersService, logg))
			r.With(middleware.RequireRole(string(enums.RoleVendor), logg)).
				Get("/vendor-orders", controllers.VendorOrders(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Patch("/{orderId}/cancel", controllers.CancelOrder(ordersService, logg))
			r.With(middleware.RequireRole(string(enums.RoleVendor), logg)).
				Patch("/{orderId}/status", controllers.UpdateOrderStatus(ordersService, logg))
			r.Get("/{orderId}/tracking", controllers.OrderTracking(ordersService, logg))
		})

		r.Route("/razorpay", func(r chi.Router) {
			r.Post("/create-order", controllers.RazorpayCreateOrder(checkoutService, logg))
			r.Post("/verify-payment", controllers.RazorpayVerifyPayment(checkoutService, logg))
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Post("/", controllers.CreateDispute(disputesService, logg))
			r.Get("/order/{orderId}", controllers.DisputeByOrder(disputesService, logg))
			r.Get("/{disputeId}", controllers.DisputeDetail(disputesService, logg))
			r.Post("/{disputeId}/messages", controllers.SendDisputeMessage(disputesService, logg))
			r.Post("/{disputeId}/close", controllers.CloseDispute(disputesService, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(string(enums.RoleAdmin), logg))
				r.Get("/", controllers.ListDisputes(disputesService, logg))
				r.Post("/{disputeId}/resolve", controllers.ResolveDispute(disputesService, logg))
				r.Patch("/{disputeId}/priority", controllers.UpdateDisputePriority(disputesService, logg))
				r.Patch("/{disputeId}/assign", controllers.AssignDisputeAdmin(disputesService, logg))
			})
		})
	})

	return r
}
