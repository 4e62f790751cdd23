package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sameerdalvi/bazario-backend/api/routes"
	"github.com/sameerdalvi/bazario-backend/internal/carts"
	"github.com/sameerdalvi/bazario-backend/internal/checkout"
	"github.com/sameerdalvi/bazario-backend/internal/coupons"
	"github.com/sameerdalvi/bazario-backend/internal/disputes"
	"github.com/sameerdalvi/bazario-backend/internal/escrow"
	"github.com/sameerdalvi/bazario-backend/internal/inventory"
	"github.com/sameerdalvi/bazario-backend/internal/orders"
	"github.com/sameerdalvi/bazario-backend/internal/payments/razorpay"
	"github.com/sameerdalvi/bazario-backend/internal/pricing"
	"github.com/sameerdalvi/bazario-backend/internal/products"
	"github.com/sameerdalvi/bazario-backend/internal/tracking"
	"github.com/sameerdalvi/bazario-backend/pkg/config"
	"github.com/sameerdalvi/bazario-backend/pkg/db"
	"github.com/sameerdalvi/bazario-backend/pkg/logger"
	"github.com/sameerdalvi/bazario-backend/pkg/metrics"
	"github.com/sameerdalvi/bazario-backend/pkg/redis"
)

const shutdownGrace = 15 * time.Second

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()

	engine, err := pricing.NewEngine(cfg.Pricing)
	if err != nil {
		logg.Error(context.Background(), "failed to build pricing engine", err)
		os.Exit(1)
	}

	gateway, err := razorpay.NewClient(cfg.Razorpay)
	if err != nil {
		logg.Error(context.Background(), "failed to build razorpay client", err)
		os.Exit(1)
	}

	tracker, err := tracking.NewService(tracking.NewClient(cfg.Tracking), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build tracking service", err)
		os.Exit(1)
	}

	ordersRepo := orders.NewRepository(conn)
	ledger := inventory.NewLedger(conn)

	ordersService, err := orders.NewService(ordersRepo, dbClient, ledger, tracker, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		dbClient,
		products.NewRepository(conn),
		carts.NewRepository(conn),
		coupons.NewRepository(conn),
		ordersRepo,
		checkout.NewTicketRepository(conn),
		ledger,
		engine,
		gateway,
		cfg.Pricing,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build checkout service", err)
		os.Exit(1)
	}

	disputesService, err := disputes.NewService(
		disputes.NewRepository(conn),
		ordersRepo,
		dbClient,
		escrow.NewClient(cfg.Escrow),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to build disputes service", err)
		os.Exit(1)
	}

	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

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
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			httpMetrics,
			checkoutService,
			ordersService,
			disputesService,
		),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-stop:
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
