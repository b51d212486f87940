package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

const defaultReconcileLimit = 250

type subscriberLister interface {
	ListActiveSubscribers(ctx context.Context, limit int) ([]uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type subscriptionFetcher interface {
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

type subscriptionSyncer interface {
	SyncSubscription(ctx context.Context, sub *stripe.Subscription) error
}

// SubscriptionReconcileJobParams configure the subscription safety net.
type SubscriptionReconcileJobParams struct {
	Logger *logger.Logger
	Users  subscriberLister
	Stripe subscriptionFetcher
	Syncer subscriptionSyncer
	Limit  int
}

// NewSubscriptionReconcileJob builds the job that re-reads subscriber
// state from the billing provider and repairs the local mirror. Webhooks
// are the primary sync path; this sweep covers missed deliveries.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Syncer == nil {
		return nil, fmt.Errorf("subscription syncer required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &subscriptionReconcileJob{
		logg:   params.Logger,
		users:  params.Users,
		stripe: params.Stripe,
		syncer: params.Syncer,
		limit:  limit,
	}, nil
}

type subscriptionReconcileJob struct {
	logg   *logger.Logger
	users  subscriberLister
	stripe subscriptionFetcher
	syncer subscriptionSyncer
	limit  int
}

func (j *subscriptionReconcileJob) Name() string { return "subscription-reconcile" }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	subscribers, err := j.users.ListActiveSubscribers(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}

	var synced int
	var errs []error
	for _, userID := range subscribers {
		if err := ctx.Err(); err != nil {
			return multierr.Combine(append(errs, err)...)
		}
		if err := j.reconcileUser(ctx, userID); err != nil {
			errs = append(errs, fmt.Errorf("reconcile user %s: %w", userID, err))
			continue
		}
		synced++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscribers": len(subscribers),
		"synced":      synced,
		"failed":      len(errs),
	})
	j.logg.Info(logCtx, "subscription reconcile sweep complete")
	return multierr.Combine(errs...)
}

func (j *subscriptionReconcileJob) reconcileUser(ctx context.Context, userID uuid.UUID) error {
	user, err := j.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return nil
	}

	sub, err := j.stripe.GetSubscription(ctx, *user.StripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("fetch subscription: %w", err)
	}
	return j.syncer.SyncSubscription(ctx, sub)
}
