package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/api/responses"
	"github.com/filmfusion-ai/filmfusion-backend/api/validators"
	"github.com/filmfusion-ai/filmfusion-backend/internal/billing"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

// BillingService describes the billing methods used by the HTTP controllers.
type BillingService interface {
	Plans(ctx context.Context) []billing.PlanDTO
	Summary(ctx context.Context, userID uuid.UUID) (*billing.SummaryDTO, error)
	StartCheckout(ctx context.Context, userID uuid.UUID, tier enums.PlanTier) (*billing.CheckoutSessionDTO, error)
	CancelSubscription(ctx context.Context, userID uuid.UUID) error
	PortalSession(ctx context.Context, userID uuid.UUID) (*billing.PortalSessionDTO, error)
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required"`
}

// BillingPlans lists the public plan catalog.
func BillingPlans(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"plans": svc.Plans(r.Context())})
	}
}

// BillingSummary reports the caller's plan, usage, and projected overage.
func BillingSummary(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// BillingCheckout opens a hosted checkout session for a paid tier.
func BillingCheckout(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		tier := enums.PlanTier(body.Plan)
		if !tier.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown plan tier"))
			return
		}

		session, err := svc.StartCheckout(r.Context(), userID, tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// BillingCancel schedules the subscription to end at the period boundary.
func BillingCancel(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CancelSubscription(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancel_scheduled"})
	}
}

// BillingPortal opens the hosted billing portal for the caller.
func BillingPortal(svc BillingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		portal, err := svc.PortalSession(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, portal)
	}
}
