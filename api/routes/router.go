package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/filmfusion-ai/filmfusion-backend/api/controllers"
	webhookcontrollers "github.com/filmfusion-ai/filmfusion-backend/api/controllers/webhooks"
	"github.com/filmfusion-ai/filmfusion-backend/api/middleware"
	"github.com/filmfusion-ai/filmfusion-backend/internal/auth"
	"github.com/filmfusion-ai/filmfusion-backend/internal/projects"
	"github.com/filmfusion-ai/filmfusion-backend/internal/renders"
	stripewebhook "github.com/filmfusion-ai/filmfusion-backend/internal/webhooks/stripe"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/auth/session"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/bigquery"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/redis"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/stripe"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          db.Pinger
	Redis       *redis.Client
	BigQuery    bigquery.Pinger
	Sessions    session.AccessSessionChecker
	AuthService auth.Service
	Register    auth.RegisterService
	Users       controllers.UserLoader

	Billing       controllers.BillingService
	Payments      controllers.PaymentLister
	Usage         controllers.UsageReader
	Projects      projects.Service
	Renders       renders.Service
	AISessions    controllers.AIGenerator
	Notifications controllers.NotificationLister

	StripeClient *stripe.Client
	StripeHooks  *stripewebhook.Service
	StripeGuard  *stripewebhook.IdempotencyGuard
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis, d.BigQuery))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(d.StripeHooks, d.StripeClient, d.StripeGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg), middleware.Idempotency(d.Redis, logg)).
			Post("/register", controllers.AuthRegister(d.Register, d.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(d.AuthService, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, d.Sessions, logg))
		r.Use(middleware.Idempotency(d.Redis, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1", func(r chi.Router) {
			r.Get("/me", controllers.AuthMe(d.Users, logg))
			r.Get("/usage", controllers.GetUsage(d.Usage, logg))

			r.Route("/billing", func(r chi.Router) {
				r.Get("/plans", controllers.BillingPlans(d.Billing, logg))
				r.Get("/summary", controllers.BillingSummary(d.Billing, logg))
				r.Post("/checkout", controllers.BillingCheckout(d.Billing, logg))
				r.Post("/cancel", controllers.BillingCancel(d.Billing, logg))
				r.Post("/portal", controllers.BillingPortal(d.Billing, logg))
				r.Get("/payments", controllers.ListPayments(d.Payments, logg))
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", controllers.ListProjects(d.Projects, logg))
				r.Post("/", controllers.CreateProject(d.Projects, logg))
				r.Get("/{projectID}", controllers.GetProject(d.Projects, logg))
				r.Patch("/{projectID}", controllers.UpdateProject(d.Projects, logg))
				r.Delete("/{projectID}", controllers.DeleteProject(d.Projects, logg))
			})

			r.Route("/renders", func(r chi.Router) {
				r.Get("/", controllers.ListRenders(d.Renders, logg))
				r.Post("/", controllers.CreateRender(d.Renders, logg))
				r.Get("/{renderID}", controllers.GetRender(d.Renders, logg))
				r.Post("/{renderID}/cancel", controllers.CancelRender(d.Renders, logg))
			})

			r.Post("/ai/generate", controllers.AIGenerate(d.AISessions, logg))
			r.Get("/notifications", controllers.ListNotifications(d.Notifications, logg))
		})
	})

	return r
}
