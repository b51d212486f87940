package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filmfusion-ai/filmfusion-backend/internal/billing"
	"github.com/filmfusion-ai/filmfusion-backend/internal/cron"
	"github.com/filmfusion-ai/filmfusion-backend/internal/notifications"
	"github.com/filmfusion-ai/filmfusion-backend/internal/payments"
	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/renders"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/internal/users"
	stripewebhook "github.com/filmfusion-ai/filmfusion-backend/internal/webhooks/stripe"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/email"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/metrics"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/migrate"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/redis"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/stripe"
)

const lockKeyFormat = "ff:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	catalog := plans.NewCatalog(cfg.Plans, logg)
	userRepo := users.NewRepository(dbClient.DB())
	usageRepo := usage.NewRepository(dbClient.DB())

	emailClient, err := email.NewClient(cfg.Email)
	if err != nil {
		logg.Error(context.Background(), "failed to create email client", err)
		os.Exit(1)
	}

	notificationSvc, err := notifications.NewService(notifications.ServiceParams{
		Repo:   notifications.NewRepository(dbClient.DB()),
		Sender: emailClient,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	sharedStore, err := store.NewRedisStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create redis store", err)
		os.Exit(1)
	}

	usageSvc, err := usage.NewService(usage.ServiceParams{
		Repo:             usageRepo,
		Catalog:          catalog,
		Shared:           sharedStore,
		Warner:           notificationSvc,
		WarnThresholdPct: cfg.Usage.WarningThresholdPct,
		Logger:           logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:   payments.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to initialize stripe", err)
		os.Exit(1)
	}

	billingSvc, err := billing.NewService(billing.ServiceParams{
		Users:   userRepo,
		Usage:   usageSvc,
		Catalog: catalog,
		Stripe:  billing.NewStripeClient(stripeClient),
		Config:  cfg.Stripe,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	syncer, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Users:             userRepo,
		Payments:          paymentsSvc,
		Catalog:           catalog,
		Dispatcher:        notificationSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription syncer", err)
		os.Exit(1)
	}

	usageResetJob, err := cron.NewUsageResetJob(cron.UsageResetJobParams{
		Logger:   logg,
		Due:      usageRepo,
		Usage:    usageSvc,
		Overages: billingSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage reset job", err)
		os.Exit(1)
	}

	renderCleanupJob, err := cron.NewRenderCleanupJob(cron.RenderCleanupJobParams{
		Logger:     logg,
		Renders:    renders.NewRepository(dbClient.DB()),
		StaleAfter: cfg.Render.StaleAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create render cleanup job", err)
		os.Exit(1)
	}

	notificationCleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:        logg,
		Notifications: notificationSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
		Logger: logg,
		Users:  userRepo,
		Stripe: billing.NewStripeClient(stripeClient),
		Syncer: syncer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription reconcile job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(usageResetJob, renderCleanupJob, notificationCleanupJob, reconcileJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	go serveMetrics(ctx, cfg.Cron.MetricsPort, logg)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, port string, logg *logger.Logger) {
	if port == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logg.Error(ctx, "metrics server stopped", err)
	}
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
