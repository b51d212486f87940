package billing

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/config"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

type stubUserStore struct {
	user       *models.User
	customerID string
	loseClaim  string
}

func (s *stubUserStore) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserStore) SetStripeCustomerID(_ context.Context, _ uuid.UUID, customerID string) (bool, error) {
	// loseClaim simulates a concurrent checkout that already persisted
	// its customer id into the NULL-guarded column.
	if s.loseClaim != "" {
		s.user.StripeCustomerID = &s.loseClaim
		return false, nil
	}
	s.customerID = customerID
	return true, nil
}

type stubUsage struct {
	counters usage.Counters
}

func (s *stubUsage) Get(_ context.Context, _ uuid.UUID) (usage.Counters, error) {
	return s.counters, nil
}

type stubStripe struct {
	checkoutParams  *stripe.CheckoutSessionParams
	portalParams    *stripe.BillingPortalSessionParams
	updateID        string
	updateParams    *stripe.SubscriptionParams
	invoiceItems    []*stripe.InvoiceItemParams
	invoiceParams   *stripe.InvoiceParams
	finalizedID     string
	customerCreated bool
}

func (s *stubStripe) CreateCustomer(_ context.Context, _ *stripe.CustomerParams) (*stripe.Customer, error) {
	s.customerCreated = true
	return &stripe.Customer{ID: "cus_new"}, nil
}

func (s *stubStripe) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.checkoutParams = params
	return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/cs_1"}, nil
}

func (s *stubStripe) CreatePortalSession(_ context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	s.portalParams = params
	return &stripe.BillingPortalSession{URL: "https://billing.stripe.com/ps_1"}, nil
}

func (s *stubStripe) GetSubscription(_ context.Context, id string) (*stripe.Subscription, error) {
	return &stripe.Subscription{ID: id}, nil
}

func (s *stubStripe) UpdateSubscription(_ context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.updateID = id
	s.updateParams = params
	return &stripe.Subscription{ID: id}, nil
}

func (s *stubStripe) CreateInvoiceItem(_ context.Context, params *stripe.InvoiceItemParams) (*stripe.InvoiceItem, error) {
	s.invoiceItems = append(s.invoiceItems, params)
	return &stripe.InvoiceItem{ID: "ii_1"}, nil
}

func (s *stubStripe) CreateInvoice(_ context.Context, params *stripe.InvoiceParams) (*stripe.Invoice, error) {
	s.invoiceParams = params
	return &stripe.Invoice{ID: "in_draft"}, nil
}

func (s *stubStripe) FinalizeInvoice(_ context.Context, id string, _ *stripe.InvoiceFinalizeInvoiceParams) (*stripe.Invoice, error) {
	s.finalizedID = id
	return &stripe.Invoice{ID: id, Status: stripe.InvoiceStatusOpen}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "billing-test", Output: io.Discard})
}

func testCatalog() *plans.Catalog {
	return plans.NewCatalog(config.PlansConfig{
		ProPriceID:        "price_pro",
		EnterprisePriceID: "price_enterprise",
	}, testLogger())
}

func proUser() *models.User {
	customerID := "cus_1"
	subID := "sub_1"
	return &models.User{
		ID:                   uuid.New(),
		Email:                "ada@example.com",
		Name:                 "Ada",
		PlanTier:             enums.PlanTierPro,
		SubscriptionStatus:   enums.SubscriptionStatusActive,
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &subID,
	}
}

func newTestService(t *testing.T, user *models.User, counters usage.Counters) (*Service, *stubUserStore, *stubStripe) {
	t.Helper()
	userStore := &stubUserStore{user: user}
	stripeStub := &stubStripe{}
	service, err := NewService(ServiceParams{
		Users:   userStore,
		Usage:   &stubUsage{counters: counters},
		Catalog: testCatalog(),
		Stripe:  stripeStub,
		Config: config.StripeConfig{
			SuccessURL:      "https://app.filmfusion.ai/billing/success",
			CancelURL:       "https://app.filmfusion.ai/billing/cancel",
			PortalReturnURL: "https://app.filmfusion.ai/account",
		},
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service, userStore, stripeStub
}

func TestPlans_ListsCatalogInPriceOrder(t *testing.T) {
	service, _, _ := newTestService(t, proUser(), usage.Counters{})

	got := service.Plans(context.Background())
	if len(got) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(got))
	}
	if got[0].Name != enums.PlanTierFree || got[2].Name != enums.PlanTierEnterprise {
		t.Fatalf("unexpected order: %v, %v, %v", got[0].Name, got[1].Name, got[2].Name)
	}
	if got[1].MonthlyPriceCents != 2900 {
		t.Fatalf("expected pro at 2900 cents, got %d", got[1].MonthlyPriceCents)
	}
}

func TestSummary_ProjectsOverageCost(t *testing.T) {
	user := proUser()
	service, _, _ := newTestService(t, user, usage.Counters{
		AICalls:       1200,
		RenderMinutes: 60,
		StorageGB:     decimal.NewFromFloat(10.0),
		ResetAt:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	})

	summary, err := service.Summary(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.IsPremium {
		t.Fatalf("active pro user must be premium")
	}
	if len(summary.Overage) != 1 {
		t.Fatalf("expected one overage line, got %d", len(summary.Overage))
	}
	line := summary.Overage[0]
	if line.Metric != enums.UsageMetricAICalls || line.AmountCents != 1000 {
		t.Fatalf("expected 200 excess calls at 1000 cents, got %+v", line)
	}
	if summary.OverageTotalCents != 1000 {
		t.Fatalf("expected total 1000, got %d", summary.OverageTotalCents)
	}
}

func TestSummary_UnknownUser(t *testing.T) {
	service, _, _ := newTestService(t, proUser(), usage.Counters{})

	_, err := service.Summary(context.Background(), uuid.New())
	if pkgerrors.Dump(err).Code != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStartCheckout_CreatesBillingProfileOnFirstUse(t *testing.T) {
	user := proUser()
	user.StripeCustomerID = nil
	service, userStore, stripeStub := newTestService(t, user, usage.Counters{})

	session, err := service.StartCheckout(context.Background(), user.ID, enums.PlanTierPro)
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if !stripeStub.customerCreated {
		t.Fatalf("expected customer created")
	}
	if userStore.customerID != "cus_new" {
		t.Fatalf("expected customer id persisted, got %q", userStore.customerID)
	}
	if session.URL == "" || session.SessionID != "cs_1" {
		t.Fatalf("unexpected session %+v", session)
	}
	params := stripeStub.checkoutParams
	if params == nil || len(params.LineItems) != 1 || *params.LineItems[0].Price != "price_pro" {
		t.Fatalf("unexpected checkout params %+v", params)
	}
	if *params.Mode != string(stripe.CheckoutSessionModeSubscription) {
		t.Fatalf("expected subscription mode, got %s", *params.Mode)
	}
}

func TestStartCheckout_LostCustomerClaimUsesPersistedID(t *testing.T) {
	user := proUser()
	user.StripeCustomerID = nil
	service, userStore, stripeStub := newTestService(t, user, usage.Counters{})
	userStore.loseClaim = "cus_winner"

	if _, err := service.StartCheckout(context.Background(), user.ID, enums.PlanTierPro); err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if !stripeStub.customerCreated {
		t.Fatalf("expected customer create attempt before losing the claim")
	}
	if *stripeStub.checkoutParams.Customer != "cus_winner" {
		t.Fatalf("expected session under the persisted customer, got %s", *stripeStub.checkoutParams.Customer)
	}
}

func TestStartCheckout_ReusesExistingCustomer(t *testing.T) {
	user := proUser()
	service, userStore, stripeStub := newTestService(t, user, usage.Counters{})

	if _, err := service.StartCheckout(context.Background(), user.ID, enums.PlanTierEnterprise); err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if stripeStub.customerCreated || userStore.customerID != "" {
		t.Fatalf("existing billing profile must be reused")
	}
	if *stripeStub.checkoutParams.Customer != "cus_1" {
		t.Fatalf("expected existing customer, got %s", *stripeStub.checkoutParams.Customer)
	}
}

func TestStartCheckout_RejectsFreeTier(t *testing.T) {
	user := proUser()
	service, _, _ := newTestService(t, user, usage.Counters{})

	_, err := service.StartCheckout(context.Background(), user.ID, enums.PlanTierFree)
	if pkgerrors.Dump(err).Code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancelSubscription_SchedulesAtPeriodEnd(t *testing.T) {
	user := proUser()
	service, _, stripeStub := newTestService(t, user, usage.Counters{})

	if err := service.CancelSubscription(context.Background(), user.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if stripeStub.updateID != "sub_1" {
		t.Fatalf("expected update on sub_1, got %q", stripeStub.updateID)
	}
	if stripeStub.updateParams == nil || !*stripeStub.updateParams.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end set")
	}
}

func TestCancelSubscription_WithoutSubscription(t *testing.T) {
	user := proUser()
	user.StripeSubscriptionID = nil
	service, _, _ := newTestService(t, user, usage.Counters{})

	err := service.CancelSubscription(context.Background(), user.ID)
	if pkgerrors.Dump(err).Code != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestPortalSession_RequiresBillingProfile(t *testing.T) {
	user := proUser()
	user.StripeCustomerID = nil
	service, _, _ := newTestService(t, user, usage.Counters{})

	_, err := service.PortalSession(context.Background(), user.ID)
	if pkgerrors.Dump(err).Code != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestInvoiceOverages_IssuesOneInvoice(t *testing.T) {
	user := proUser()
	service, _, stripeStub := newTestService(t, user, usage.Counters{
		AICalls:       1200,
		RenderMinutes: 130,
		StorageGB:     decimal.NewFromFloat(10.0),
	})

	result, err := service.InvoiceOverages(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("invoice overages: %v", err)
	}
	// 200 calls * 5c + 10 minutes * 50c
	if result.TotalCents != 1500 {
		t.Fatalf("expected 1500 cents, got %d", result.TotalCents)
	}
	if len(stripeStub.invoiceItems) != 2 {
		t.Fatalf("expected 2 invoice items, got %d", len(stripeStub.invoiceItems))
	}
	if stripeStub.finalizedID != "in_draft" {
		t.Fatalf("expected draft finalized, got %q", stripeStub.finalizedID)
	}
	if result.InvoiceID != "in_draft" {
		t.Fatalf("unexpected invoice id %q", result.InvoiceID)
	}
}

func TestInvoiceOverages_NoExcessIssuesNothing(t *testing.T) {
	user := proUser()
	service, _, stripeStub := newTestService(t, user, usage.Counters{
		AICalls:       10,
		RenderMinutes: 5,
		StorageGB:     decimal.NewFromFloat(0.5),
	})

	result, err := service.InvoiceOverages(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("invoice overages: %v", err)
	}
	if result.InvoiceID != "" || result.TotalCents != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if len(stripeStub.invoiceItems) != 0 || stripeStub.invoiceParams != nil {
		t.Fatalf("no provider calls expected")
	}
}
