package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/filmfusion-ai/filmfusion-backend/api/routes"
	"github.com/filmfusion-ai/filmfusion-backend/internal/aisessions"
	"github.com/filmfusion-ai/filmfusion-backend/internal/analytics"
	"github.com/filmfusion-ai/filmfusion-backend/internal/auth"
	"github.com/filmfusion-ai/filmfusion-backend/internal/billing"
	"github.com/filmfusion-ai/filmfusion-backend/internal/notifications"
	"github.com/filmfusion-ai/filmfusion-backend/internal/payments"
	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/projects"
	"github.com/filmfusion-ai/filmfusion-backend/internal/renders"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/internal/users"
	stripewebhook "github.com/filmfusion-ai/filmfusion-backend/internal/webhooks/stripe"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/auth/session"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/bigquery"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/email"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/migrate"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pubsub"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/redis"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/store"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/stripe"
)

const webhookGuardTTL = 72 * time.Hour

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	userRepo := users.NewRepository(dbClient.DB())
	sharedStore, err := store.NewRedisStore(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create redis store", err)
		os.Exit(1)
	}
	catalog := plans.NewCatalog(cfg.Plans, logg)

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

	// Usage events stream to BigQuery through Pub/Sub when GCP is
	// configured; otherwise metering still works and export is skipped.
	var usageSink usage.EventSink
	var bigqueryPinger bigquery.Pinger
	if cfg.GCP.ProjectID != "" {
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

		emitter, err := analytics.NewEmitter(
			analytics.NewGCPPublisher(pubsubClient.Publisher(cfg.PubSub.UsageTopic)),
			logg,
		)
		if err != nil {
			logg.Error(context.Background(), "failed to create usage event emitter", err)
			os.Exit(1)
		}
		emitterCtx, stopEmitter := context.WithCancel(context.Background())
		defer stopEmitter()
		go func() {
			if err := emitter.Run(emitterCtx); err != nil && err != context.Canceled {
				logg.Error(emitterCtx, "usage event emitter stopped", err)
			}
		}()
		usageSink = emitter

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
		bigqueryPinger = bigqueryClient
	}

	usageSvc, err := usage.NewService(usage.ServiceParams{
		Repo:             usage.NewRepository(dbClient.DB()),
		Catalog:          catalog,
		Shared:           sharedStore,
		Warner:           notificationSvc,
		Sink:             usageSink,
		WarnThresholdPct: cfg.Usage.WarningThresholdPct,
		Logger:           logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create usage service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
		Dispatcher:     notificationSvc,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create register service", err)
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

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:   payments.NewRepository(dbClient.DB()),
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	projectSvc, err := projects.NewService(projects.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create project service", err)
		os.Exit(1)
	}

	renderSvc, err := renders.NewService(renders.NewRepository(dbClient.DB()), projectSvc, usageSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create render service", err)
		os.Exit(1)
	}

	aiSvc, err := aisessions.NewService(aisessions.ServiceParams{
		Repo:      aisessions.NewRepository(dbClient.DB()),
		Usage:     usageSvc,
		Generator: aisessions.NewPlaceholderGenerator(""),
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ai session service", err)
		os.Exit(1)
	}

	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Users:             userRepo,
		Payments:          paymentsSvc,
		Catalog:           catalog,
		Dispatcher:        notificationSvc,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookGuardTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			DB:            dbClient,
			Redis:         redisClient,
			BigQuery:      bigqueryPinger,
			Sessions:      sessionManager,
			AuthService:   authService,
			Register:      registerService,
			Users:         userRepo,
			Billing:       billingSvc,
			Payments:      paymentsSvc,
			Usage:         usageSvc,
			Projects:      projectSvc,
			Renders:       renderSvc,
			AISessions:    aiSvc,
			Notifications: notificationSvc,
			StripeClient:  stripeClient,
			StripeHooks:   webhookSvc,
			StripeGuard:   webhookGuard,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
