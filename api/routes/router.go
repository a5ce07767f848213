package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucasferreyra/seedmart-backend/api/controllers"
	"github.com/lucasferreyra/seedmart-backend/api/middleware"
	"github.com/lucasferreyra/seedmart-backend/internal/auth"
	cartsvc "github.com/lucasferreyra/seedmart-backend/internal/cart"
	checkoutsvc "github.com/lucasferreyra/seedmart-backend/internal/checkout"
	ordersvc "github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/payments"
	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/internal/transactions"
	"github.com/lucasferreyra/seedmart-backend/pkg/config"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
	pkgredis "github.com/lucasferreyra/seedmart-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           pkgredis.Pinger
	Redis        *pkgredis.Client
	AuthService  auth.Service
	CartService  cartsvc.Service
	Checkout     checkoutsvc.Service
	Orders       ordersvc.Service
	Payments     payments.Service
	Sellers      sellers.Service
	Transactions transactions.Repository
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(d.Logger),
		middleware.RequestID(d.Logger),
		middleware.Logging(d.Logger),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(d.Config))
		r.Get("/ready", controllers.HealthReady(d.Config, d.DB, d.Redis, d.Logger))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/login", controllers.AuthLogin(d.AuthService, d.Logger))
		r.With(middleware.Idempotency(d.Redis, d.Logger)).Post("/register", controllers.AuthRegister(d.AuthService, d.Logger))
	})

	// Gateway confirmation callback. Unauthenticated: the provider redirects
	// the buyer's browser here and verification happens against the gateway.
	r.Get("/api/v1/payments/{paymentId}", controllers.PaymentSettle(d.Payments, d.Redis, d.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(d.Config.JWT, d.Logger))
		r.Use(middleware.Idempotency(d.Redis, d.Logger))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(d.CartService, d.Logger))
			r.Put("/items", controllers.CartUpsertItem(d.CartService, d.Logger))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(d.CartService, d.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.Checkout(d.Checkout, d.Logger))
			r.Get("/", controllers.OrdersList(d.Orders, d.Logger))
			r.Get("/{orderId}", controllers.OrderDetail(d.Orders, d.Logger))
			r.Put("/{orderId}/cancel", controllers.OrderCancel(d.Orders, d.Logger))
		})

		r.Get("/payment-orders/{paymentOrderId}", controllers.PaymentOrderDetail(d.Payments, d.Logger))

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireSeller(d.Logger))
			r.Get("/orders", controllers.SellerOrders(d.Orders, d.Logger))
			r.Patch("/orders/{orderId}/status", controllers.SellerOrderStatus(d.Orders, d.Logger))
			r.Get("/report", controllers.SellerReport(d.Sellers, d.Logger))
			r.Get("/transactions", controllers.SellerTransactions(d.Transactions, d.Logger))
		})
	})

	return r
}
