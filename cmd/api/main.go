package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lucasferreyra/seedmart-backend/api/routes"
	"github.com/lucasferreyra/seedmart-backend/internal/auth"
	"github.com/lucasferreyra/seedmart-backend/internal/cart"
	"github.com/lucasferreyra/seedmart-backend/internal/checkout"
	"github.com/lucasferreyra/seedmart-backend/internal/orders"
	"github.com/lucasferreyra/seedmart-backend/internal/payments"
	"github.com/lucasferreyra/seedmart-backend/internal/products"
	"github.com/lucasferreyra/seedmart-backend/internal/sellers"
	"github.com/lucasferreyra/seedmart-backend/internal/transactions"
	"github.com/lucasferreyra/seedmart-backend/internal/users"
	"github.com/lucasferreyra/seedmart-backend/pkg/config"
	"github.com/lucasferreyra/seedmart-backend/pkg/db"
	"github.com/lucasferreyra/seedmart-backend/pkg/gateway"
	"github.com/lucasferreyra/seedmart-backend/pkg/logger"
	"github.com/lucasferreyra/seedmart-backend/pkg/metrics"
	"github.com/lucasferreyra/seedmart-backend/pkg/migrate"
	"github.com/lucasferreyra/seedmart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var gateways []gateway.Gateway
	if cfg.Razorpay.KeyID != "" {
		razorpayGW, err := gateway.NewRazorpay(cfg.Razorpay, cfg.Checkout.CallbackURL)
		if err != nil {
			logg.Error(context.Background(), "failed to create razorpay gateway", err)
			os.Exit(1)
		}
		gateways = append(gateways, razorpayGW)
	}
	if cfg.Stripe.APIKey != "" {
		stripeGW, err := gateway.NewStripe(cfg.Stripe)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe gateway", err)
			os.Exit(1)
		}
		gateways = append(gateways, stripeGW)
	}
	registry := gateway.NewRegistry(gateways...)

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	usersRepo := users.NewRepository(dbClient.DB())
	sellersRepo := sellers.NewRepository(dbClient.DB())
	productsRepo := products.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	paymentsRepo := payments.NewRepository(dbClient.DB())
	txnsRepo := transactions.NewRepository(dbClient.DB())

	authService, err := auth.NewService(dbClient, usersRepo, sellersRepo, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(cartRepo, productsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	ordersService, err := orders.NewService(dbClient, ordersRepo, sellersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}
	sellersService, err := sellers.NewService(sellersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create sellers service", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(
		dbClient,
		cartRepo,
		ordersRepo,
		paymentsRepo,
		usersRepo,
		registry,
		paymentMetrics,
		logg,
		cfg.Checkout.GatewayTimeout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(
		dbClient,
		paymentsRepo,
		ordersRepo,
		txnsRepo,
		sellersRepo,
		registry,
		paymentMetrics,
		logg,
		cfg.Checkout.GatewayTimeout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisClient,
			AuthService:  authService,
			CartService:  cartService,
			Checkout:     checkoutService,
			Orders:       ordersService,
			Payments:     paymentsService,
			Sellers:      sellersService,
			Transactions: txnsRepo,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
