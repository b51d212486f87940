package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/projects"
	"github.com/filmfusion-ai/filmfusion-backend/internal/renders"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/migrate"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pubsub"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/redis"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "render-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "render-worker"

	logg = logger.New(logger.Options{
		ServiceName: "render-worker",
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub", err)
		}
	}()

	sharedStore, err := store.NewRedisStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create redis store", err)
		os.Exit(1)
	}

	usageSvc, err := usage.NewService(usage.ServiceParams{
		Repo:             usage.NewRepository(dbClient.DB()),
		Catalog:          plans.NewCatalog(cfg.Plans, logg),
		Shared:           sharedStore,
		WarnThresholdPct: cfg.Usage.WarningThresholdPct,
		Logger:           logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	worker, err := renders.NewWorker(
		renders.NewRepository(dbClient.DB()),
		projects.NewRepository(dbClient.DB()),
		usageSvc,
		renders.NewGCPPublisher(pubsubClient.Publisher(cfg.PubSub.RenderTopic)),
		cfg.Render,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create render worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting render worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "render worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "render worker shutting down gracefully")
}
