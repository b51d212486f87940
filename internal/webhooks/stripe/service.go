// Package stripewebhook reconciles billing provider events onto local
// user state. The provider remains the source of truth: handlers never
// write back to it, they only mirror what the event says.
package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/payments"
	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/users"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userStore interface {
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
	UpdateBillingState(ctx context.Context, id uuid.UUID, state users.BillingState) error
}

type paymentRecorder interface {
	Append(ctx context.Context, input payments.AppendInput) (*models.Payment, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, kind enums.NotificationKind, user *models.User, data map[string]any)
}

// ServiceParams bundles the reconciler's dependencies.
type ServiceParams struct {
	Users             userStore
	Payments          paymentRecorder
	Catalog           *plans.Catalog
	Dispatcher        dispatcher
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies Stripe webhook events to user billing state.
type Service struct {
	users      userStore
	payments   paymentRecorder
	catalog    *plans.Catalog
	dispatcher dispatcher
	txRunner   txRunner
	logg       *logger.Logger

	// userStoreFor rebinds the user store to the active transaction;
	// tests substitute a stub here.
	userStoreFor func(tx *gorm.DB) userStore
}

// NewService wires the webhook reconciler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user store required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment recorder required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
	}
	if params.Dispatcher == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notification dispatcher required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		users:      params.Users,
		payments:   params.Payments,
		catalog:    params.Catalog,
		dispatcher: params.Dispatcher,
		txRunner:   params.TransactionRunner,
		logg:       params.Logger,
		userStoreFor: func(tx *gorm.DB) userStore {
			if rebindable, ok := params.Users.(*users.Repository); ok {
				return rebindable.WithTx(tx)
			}
			return params.Users
		},
	}, nil
}

// HandleEvent routes one verified Stripe event. A nil return means the
// event is consumed; unknown types and orphan customers are logged and
// consumed so the provider stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithEventID(ctx, event.ID)

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, event.Type, &sub)

	case stripe.EventTypeCustomerSubscriptionTrialWillEnd:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.trialEnding(ctx, &sub)

	case stripe.EventTypeInvoicePaymentSucceeded:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice event")
		}
		return s.invoicePaid(ctx, &invoice)

	case stripe.EventTypeInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice event")
		}
		return s.invoiceFailed(ctx, &invoice)

	case stripe.EventTypeInvoiceUpcoming:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode invoice event")
		}
		return s.invoiceUpcoming(ctx, &invoice)

	default:
		s.logg.Info(ctx, fmt.Sprintf("ignoring unhandled stripe event %s", event.Type))
		return nil
	}
}

// SyncSubscription applies the provider's current subscription state to
// the local mirror. The scheduled reconcile sweep uses it to repair
// state after missed webhook deliveries.
func (s *Service) SyncSubscription(ctx context.Context, sub *stripe.Subscription) error {
	if sub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription required")
	}
	eventType := stripe.EventTypeCustomerSubscriptionUpdated
	if sub.Status == stripe.SubscriptionStatusCanceled {
		eventType = stripe.EventTypeCustomerSubscriptionDeleted
	}
	return s.syncSubscription(ctx, eventType, sub)
}

func (s *Service) syncSubscription(ctx context.Context, eventType stripe.EventType, sub *stripe.Subscription) error {
	user, err := s.resolveUser(ctx, customerID(sub))
	if err != nil || user == nil {
		return err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	if eventType == stripe.EventTypeCustomerSubscriptionDeleted {
		return s.subscriptionEnded(ctx, user)
	}

	tier := s.catalog.ResolveByPriceID(ctx, priceID(sub))
	state := users.BillingState{
		SubscriptionID:     &sub.ID,
		Status:             mapSubscriptionStatus(ctx, s.logg, sub.Status),
		PlanTier:           tier,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CurrentPeriodStart: periodStart(sub),
		CurrentPeriodEnd:   periodEnd(sub),
	}

	wasCancelPending := user.CancelAtPeriodEnd
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.userStoreFor(tx).UpdateBillingState(ctx, user.ID, state)
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update billing state")
	}
	s.logg.Info(ctx, fmt.Sprintf("subscription synced to %s/%s", state.PlanTier, state.Status))

	switch {
	case eventType == stripe.EventTypeCustomerSubscriptionCreated:
		s.dispatcher.Dispatch(ctx, enums.NotificationKindSubscriptionWelcome, user, map[string]any{
			"plan": tier.String(),
		})
	case !wasCancelPending && sub.CancelAtPeriodEnd:
		s.dispatcher.Dispatch(ctx, enums.NotificationKindSubscriptionCancelled, user, map[string]any{
			"period_end": formatDate(periodEnd(sub)),
		})
	}
	return nil
}

// subscriptionEnded drops the user back to the free tier. Usage counters
// are left alone; the scheduled reset owns them.
func (s *Service) subscriptionEnded(ctx context.Context, user *models.User) error {
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.userStoreFor(tx).UpdateBillingState(ctx, user.ID, users.BillingState{
			SubscriptionID:    nil,
			Status:            enums.SubscriptionStatusCanceled,
			PlanTier:          enums.PlanTierFree,
			CancelAtPeriodEnd: false,
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset billing state")
	}
	s.logg.Info(ctx, "subscription ended, user back on free tier")

	s.dispatcher.Dispatch(ctx, enums.NotificationKindSubscriptionEnded, user, nil)
	return nil
}

func (s *Service) trialEnding(ctx context.Context, sub *stripe.Subscription) error {
	user, err := s.resolveUser(ctx, customerID(sub))
	if err != nil || user == nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, enums.NotificationKindTrialEnding, user, map[string]any{
		"trial_end": formatUnixDate(sub.TrialEnd),
	})
	return nil
}

func (s *Service) invoicePaid(ctx context.Context, invoice *stripe.Invoice) error {
	user, err := s.resolveUser(ctx, invoiceCustomerID(invoice))
	if err != nil || user == nil {
		return err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	paidAt := time.Now().UTC()
	_, err = s.payments.Append(ctx, payments.AppendInput{
		UserID:      user.ID,
		InvoiceID:   invoice.ID,
		AmountCents: invoice.AmountPaid,
		Currency:    string(invoice.Currency),
		Status:      enums.PaymentStatusSucceeded,
		Type:        paymentTypeForInvoice(invoice),
		Description: invoiceDescription(invoice),
		PaidAt:      &paidAt,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}

	s.dispatcher.Dispatch(ctx, enums.NotificationKindPaymentReceipt, user, map[string]any{
		"amount": formatCents(invoice.AmountPaid),
	})
	return nil
}

func (s *Service) invoiceFailed(ctx context.Context, invoice *stripe.Invoice) error {
	user, err := s.resolveUser(ctx, invoiceCustomerID(invoice))
	if err != nil || user == nil {
		return err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	_, err = s.payments.Append(ctx, payments.AppendInput{
		UserID:      user.ID,
		InvoiceID:   invoice.ID,
		AmountCents: invoice.AmountDue,
		Currency:    string(invoice.Currency),
		Status:      enums.PaymentStatusFailed,
		Type:        paymentTypeForInvoice(invoice),
		Description: invoiceDescription(invoice),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record failed payment")
	}

	// Subscription status is not touched here; the provider's
	// subscription.updated event carries the authoritative transition.
	s.logg.Warn(ctx, "invoice payment failed")

	data := map[string]any{
		"amount": formatCents(invoice.AmountDue),
	}
	if invoice.HostedInvoiceURL != "" {
		data["invoice_url"] = invoice.HostedInvoiceURL
	}
	s.dispatcher.Dispatch(ctx, enums.NotificationKindPaymentFailed, user, data)
	return nil
}

func (s *Service) invoiceUpcoming(ctx context.Context, invoice *stripe.Invoice) error {
	user, err := s.resolveUser(ctx, invoiceCustomerID(invoice))
	if err != nil || user == nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, enums.NotificationKindUpcomingInvoice, user, map[string]any{
		"amount":   formatCents(invoice.AmountDue),
		"due_date": formatUnixDate(invoice.NextPaymentAttempt),
	})
	return nil
}

// resolveUser maps a provider customer id to a local user. Orphan events
// resolve to (nil, nil): logged, consumed, never retried.
func (s *Service) resolveUser(ctx context.Context, custID string) (*models.User, error) {
	if custID == "" {
		s.logg.Warn(ctx, "stripe event without customer id, dropping")
		return nil, nil
	}
	user, err := s.users.FindByStripeCustomerID(ctx, custID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user by customer id")
	}
	if user == nil {
		s.logg.Warn(ctx, fmt.Sprintf("stripe event for unknown customer %s, dropping", custID))
		return nil, nil
	}
	return user, nil
}

func mapSubscriptionStatus(ctx context.Context, logg *logger.Logger, status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	default:
		logg.Warn(ctx, fmt.Sprintf("unmapped stripe subscription status %q, treating as inactive", status))
		return enums.SubscriptionStatusInactive
	}
}

func customerID(sub *stripe.Subscription) string {
	if sub == nil || sub.Customer == nil {
		return ""
	}
	return sub.Customer.ID
}

func invoiceCustomerID(invoice *stripe.Invoice) string {
	if invoice == nil || invoice.Customer == nil {
		return ""
	}
	return invoice.Customer.ID
}

func priceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func periodStart(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return unixPtr(sub.Items.Data[0].CurrentPeriodStart)
}

func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return unixPtr(sub.Items.Data[0].CurrentPeriodEnd)
}

func paymentTypeForInvoice(invoice *stripe.Invoice) enums.PaymentType {
	if invoice != nil && invoice.BillingReason == stripe.InvoiceBillingReasonManual {
		return enums.PaymentTypeUsage
	}
	return enums.PaymentTypeSubscription
}

func invoiceDescription(invoice *stripe.Invoice) string {
	if invoice == nil {
		return ""
	}
	if paymentTypeForInvoice(invoice) == enums.PaymentTypeUsage {
		return "Usage overage invoice"
	}
	return "Subscription invoice"
}

func unixPtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("January 2, 2006")
}

func formatUnixDate(ts int64) string {
	return formatDate(unixPtr(ts))
}
