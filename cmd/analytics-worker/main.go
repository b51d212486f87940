package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/filmfusion-ai/filmfusion-backend/internal/analytics"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/bigquery"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pubsub"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/redis"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "analytics-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "analytics-worker"

	logg = logger.New(logger.Options{
		ServiceName: "analytics-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

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

	bigqueryClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap bigquery", err)
		os.Exit(1)
	}
	defer func() {
		if err := bigqueryClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing bigquery", err)
		}
	}()

	writer, err := analytics.NewWriter(bigqueryClient, analytics.WriterConfig{
		Table: cfg.BigQuery.UsageEventsTable,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage event writer", err)
		os.Exit(1)
	}

	sharedStore, err := store.NewRedisStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create redis store", err)
		os.Exit(1)
	}

	consumer, err := analytics.NewConsumer(
		writer,
		pubsubClient.Subscription(cfg.PubSub.UsageSubscription),
		sharedStore,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create usage analytics consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting analytics worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "analytics worker shutting down gracefully")
}
