// Package billing fronts the payment provider: hosted checkout, the
// customer portal, cancellation, and monthly overage invoicing. Local
// subscription state is never written here; the webhook reconciler owns
// that after the provider confirms each change.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/overage"
	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) (bool, error)
}

type usageReader interface {
	Get(ctx context.Context, userID uuid.UUID) (usage.Counters, error)
}

// ServiceParams groups dependencies for the billing service.
type ServiceParams struct {
	Users   userStore
	Usage   usageReader
	Catalog *plans.Catalog
	Stripe  StripeBillingClient
	Config  config.StripeConfig
	Logger  *logger.Logger
}

// Service orchestrates billing operations against the payment provider.
type Service struct {
	users   userStore
	usage   usageReader
	catalog *plans.Catalog
	stripe  StripeBillingClient
	cfg     config.StripeConfig
	logg    *logger.Logger
}

// NewService builds a billing service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user store required")
	}
	if params.Usage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "usage reader required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.Stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		users:   params.Users,
		usage:   params.Usage,
		catalog: params.Catalog,
		stripe:  params.Stripe,
		cfg:     params.Config,
		logg:    params.Logger,
	}, nil
}

// Plans returns the public catalog in ascending price order.
func (s *Service) Plans(_ context.Context) []PlanDTO {
	tiers := s.catalog.List()
	out := make([]PlanDTO, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, planDTO(tier))
	}
	return out
}

// Summary assembles the account billing overview: current plan, cycle
// usage, and what the cycle's overage would cost if invoiced now.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*SummaryDTO, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	counters, err := s.usage.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier := s.catalog.Get(user.PlanTier)
	lines := overage.LineItems(overage.Compute(counters, tier))

	var total int64
	for _, line := range lines {
		total += line.AmountCents
	}
	return &SummaryDTO{
		Plan:               planDTO(tier),
		SubscriptionStatus: user.SubscriptionStatus,
		IsPremium:          user.IsPremium(),
		CancelAtPeriodEnd:  user.CancelAtPeriodEnd,
		CurrentPeriodEnd:   user.CurrentPeriodEnd,
		Usage:              usageDTO(counters),
		Overage:            overageLineDTOs(lines),
		OverageTotalCents:  total,
	}, nil
}

// StartCheckout opens a hosted checkout session for a paid tier. The
// subscription itself lands later through the provider webhook.
func (s *Service) StartCheckout(ctx context.Context, userID uuid.UUID, tierName enums.PlanTier) (*CheckoutSessionDTO, error) {
	if tierName == enums.PlanTierFree {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "free tier has no checkout")
	}
	tier := s.catalog.Get(tierName)
	if tier.Name != tierName || tier.StripePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %q is not purchasable", tierName))
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(tier.StripePriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(user.ID.String()),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), fmt.Sprintf("checkout session opened for %s", tierName))
	return &CheckoutSessionDTO{SessionID: session.ID, URL: session.URL}, nil
}

// CancelSubscription schedules cancellation at the end of the paid
// period. Access continues until then; the deletion webhook downgrades
// the account when the period lapses.
func (s *Service) CancelSubscription(ctx context.Context, userID uuid.UUID) error {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if user.StripeSubscriptionID == nil || *user.StripeSubscriptionID == "" {
		return pkgerrors.New(pkgerrors.CodeConflict, "no active subscription to cancel")
	}

	_, err = s.stripe.UpdateSubscription(ctx, *user.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule subscription cancellation")
	}
	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "subscription cancellation scheduled")
	return nil
}

// PortalSession opens the provider's self-service billing portal.
func (s *Service) PortalSession(ctx context.Context, userID uuid.UUID) (*PortalSessionDTO, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "no billing profile yet")
	}

	session, err := s.stripe.CreatePortalSession(ctx, &stripe.BillingPortalSessionParams{
		Customer:  user.StripeCustomerID,
		ReturnURL: stripe.String(s.cfg.PortalReturnURL),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}
	return &PortalSessionDTO{URL: session.URL}, nil
}

// InvoiceOverages prices the cycle's usage beyond plan limits and issues
// one provider invoice for it. A cycle with no excess issues nothing and
// returns an empty result.
func (s *Service) InvoiceOverages(ctx context.Context, userID uuid.UUID) (*OverageInvoiceDTO, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	counters, err := s.usage.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier := s.catalog.Get(user.PlanTier)
	lines := overage.LineItems(overage.Compute(counters, tier))
	if len(lines) == 0 {
		return &OverageInvoiceDTO{}, nil
	}
	if user.StripeCustomerID == nil || *user.StripeCustomerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "overage owed but user has no billing profile")
	}

	ctx = s.logg.WithUserID(ctx, user.ID.String())
	var total int64
	for _, line := range lines {
		_, err := s.stripe.CreateInvoiceItem(ctx, &stripe.InvoiceItemParams{
			Customer:          user.StripeCustomerID,
			Currency:          stripe.String(string(stripe.CurrencyUSD)),
			Description:       stripe.String(line.Description),
			Quantity:          stripe.Int64(1),
			UnitAmountDecimal: stripe.Float64(float64(line.AmountCents)),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("create invoice item for %s", line.Metric))
		}
		total += line.AmountCents
	}

	created, err := s.stripe.CreateInvoice(ctx, &stripe.InvoiceParams{
		Customer:                    user.StripeCustomerID,
		AutoAdvance:                 stripe.Bool(true),
		PendingInvoiceItemsBehavior: stripe.String("include"),
		Description:                 stripe.String("FilmFusion usage overages"),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create overage invoice")
	}
	finalized, err := s.stripe.FinalizeInvoice(ctx, created.ID, &stripe.InvoiceFinalizeInvoiceParams{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize overage invoice")
	}

	s.logg.Info(ctx, fmt.Sprintf("overage invoice %s issued for %d cents", finalized.ID, total))
	return &OverageInvoiceDTO{
		InvoiceID:  finalized.ID,
		TotalCents: total,
		Lines:      overageLineDTOs(lines),
	}, nil
}

func (s *Service) findUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

// ensureCustomer returns the user's provider customer id, creating the
// customer on first checkout. The id write is first-writer-wins, so a
// concurrent checkout cannot fork the billing profile.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	created, err := s.stripe.CreateCustomer(ctx, &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
		Metadata: map[string]string{
			"user_id": user.ID.String(),
		},
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe customer")
	}
	claimed, err := s.users.SetStripeCustomerID(ctx, user.ID, created.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stripe customer id")
	}
	if !claimed {
		// A concurrent checkout claimed the row first; use the id it
		// persisted so every session lands on one customer.
		fresh, err := s.findUser(ctx, user.ID)
		if err != nil {
			return "", err
		}
		if fresh.StripeCustomerID == nil || *fresh.StripeCustomerID == "" {
			return "", pkgerrors.New(pkgerrors.CodeInternal, "customer id claim lost but row is empty")
		}
		s.logg.Warn(ctx, fmt.Sprintf("discarding duplicate stripe customer %s", created.ID))
		return *fresh.StripeCustomerID, nil
	}
	return created.ID, nil
}
