package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/mgallardo/edustack-backend/api/routes"
	"github.com/mgallardo/edustack-backend/internal/enforcement"
	"github.com/mgallardo/edustack-backend/internal/entitlements"
	"github.com/mgallardo/edustack-backend/internal/memberships"
	"github.com/mgallardo/edustack-backend/internal/plans"
	"github.com/mgallardo/edustack-backend/internal/subscriptions"
	"github.com/mgallardo/edustack-backend/internal/usage"
	"github.com/mgallardo/edustack-backend/pkg/config"
	"github.com/mgallardo/edustack-backend/pkg/db"
	"github.com/mgallardo/edustack-backend/pkg/logger"
	"github.com/mgallardo/edustack-backend/pkg/metrics"
	"github.com/mgallardo/edustack-backend/pkg/migrate"
	"github.com/mgallardo/edustack-backend/pkg/redis"
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
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	environment, err := cfg.Entitlements.ParsedEnvironment()
	if err != nil {
		logg.Error(context.Background(), "failed to parse entitlements environment", err)
		os.Exit(1)
	}

	planRepo := plans.NewRepository(dbClient.DB())
	subscriptionRepo := subscriptions.NewRepository(dbClient.DB())
	membershipRepo := memberships.NewRepository(dbClient.DB())
	usageRepo := usage.NewRepository(dbClient.DB())
	entitlementRepo := entitlements.NewRepository(dbClient.DB())

	entitlementMetrics := metrics.NewEntitlementMetrics(prometheus.DefaultRegisterer)

	planService, err := plans.NewService(plans.ServiceParams{Repo: planRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:              subscriptionRepo,
		PlanRepo:          planRepo,
		TransactionRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	usageService, err := usage.NewService(usage.ServiceParams{
		Repo:        usageRepo,
		Environment: environment,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	entitlementService, err := entitlements.NewService(entitlements.ServiceParams{
		Repo:             entitlementRepo,
		SubscriptionRepo: subscriptionRepo,
		MembershipRepo:   membershipRepo,
		PlanRepo:         planRepo,
		Logger:           logg,
		Metrics:          entitlementMetrics,
		SnapshotTTL:      cfg.Entitlements.SnapshotTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create entitlement service", err)
		os.Exit(1)
	}

	enforcementService, err := enforcement.NewService(enforcement.ServiceParams{
		Resolver: entitlementService,
		Usage:    usageService,
		Logger:   logg,
		Metrics:  entitlementMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create enforcement service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:              cfg,
			Logger:              logg,
			DB:                  dbClient,
			Redis:               redisClient,
			PromGatherer:        prometheus.DefaultGatherer,
			PlanService:         planService,
			SubscriptionService: subscriptionService,
			EntitlementService:  entitlementService,
			UsageService:        usageService,
			EnforcementService:  enforcementService,
		}),
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		server.Shutdown(shutdownCtx),
		redisClient.Close(),
		dbClient.Close(),
	)
	if err != nil {
		logg.Error(ctx, "error during shutdown", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
