package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/sellerhub-backend/api/routes"
	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	"github.com/angelmondragon/sellerhub-backend/internal/checkout"
	"github.com/angelmondragon/sellerhub-backend/internal/reports"
	"github.com/angelmondragon/sellerhub-backend/internal/sessions"
	"github.com/angelmondragon/sellerhub-backend/internal/stock"
	"github.com/angelmondragon/sellerhub-backend/internal/subscriptions"
	"github.com/angelmondragon/sellerhub-backend/pkg/auth/session"
	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/instance"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
	"github.com/angelmondragon/sellerhub-backend/pkg/migrate"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
	"github.com/angelmondragon/sellerhub-backend/pkg/redis"
	"github.com/angelmondragon/sellerhub-backend/pkg/security"
)

const shutdownTimeout = 15 * time.Second

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
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		return err
	}
	closers := []func() error{dbClient.Close}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		return err
	}

	var (
		redisClient    *redis.Client
		sessionManager *session.Manager
	)
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		sessionManager, err = session.NewManager(redisClient)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; session registry, rate limits and idempotency disabled")
	}

	opMetrics := metrics.NewOperationMetrics(prometheus.DefaultRegisterer)
	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	catalogRepo := catalog.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Tx:      dbClient,
		Repo:    subscriptions.NewRepository(dbClient.DB()),
		Hasher:  security.NewKeyHasher(cfg.Password),
		Outbox:  outboxSvc,
		Logger:  logg,
		Metrics: opMetrics,
	})
	if err != nil {
		return err
	}

	sessionParams := sessions.ServiceParams{
		Tx:        dbClient,
		Repo:      sessions.NewRepository(dbClient.DB()),
		Verifier:  security.NewKeyHasher(cfg.Password),
		JWTConfig: cfg.JWT,
		Logger:    logg,
		Metrics:   opMetrics,
	}
	if sessionManager != nil {
		sessionParams.Registry = sessionManager
	}
	sessionService, err := sessions.NewService(sessionParams)
	if err != nil {
		return err
	}

	stockService, err := stock.NewService(stock.ServiceParams{
		Tx:      dbClient,
		Repo:    stock.NewRepository(dbClient.DB()),
		Catalog: catalogRepo,
		Outbox:  outboxSvc,
		Logger:  logg,
		Metrics: opMetrics,
	})
	if err != nil {
		return err
	}

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:        cartRepo,
		Catalog:     catalogRepo,
		Logger:      logg,
		Metrics:     opMetrics,
		MaxAttempts: cfg.Cart.MaxCASAttempts,
	})
	if err != nil {
		return err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		CartRepo:  cartRepo,
		Orders:    checkout.NewRepository(dbClient.DB()),
		Customers: catalogRepo,
		Stock:     stockService,
		Outbox:    outboxSvc,
		Logger:    logg,
		Metrics:   opMetrics,
	})
	if err != nil {
		return err
	}

	reportsService, err := reports.NewService(reports.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}

	deps := routes.Dependencies{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Gatherer:      prometheus.DefaultGatherer,
		Subscriptions: subscriptionService,
		Sessions:      sessionService,
		Stock:         stockService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Reports:       reportsService,
	}
	if sessionManager != nil {
		deps.SessionChecker = sessionManager
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
