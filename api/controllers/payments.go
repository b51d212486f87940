package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/api/responses"
	"github.com/filmfusion-ai/filmfusion-backend/api/validators"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

// PaymentLister describes the payment history read path used by the HTTP layer.
type PaymentLister interface {
	ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Payment, *pagination.Cursor, error)
}

type paymentResponse struct {
	ID          uuid.UUID  `json:"id"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Type        string     `json:"type"`
	Description *string    `json:"description,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListPayments returns the caller's payment history, newest first.
func ListPayments(svc PaymentLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		payments, next, err := svc.ListByUser(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]paymentResponse, 0, len(payments))
		for _, p := range payments {
			items = append(items, paymentResponse{
				ID:          p.ID,
				AmountCents: p.AmountCents,
				Currency:    p.Currency,
				Status:      string(p.Status),
				Type:        string(p.Type),
				Description: p.Description,
				PaidAt:      p.PaidAt,
				CreatedAt:   p.CreatedAt,
			})
		}

		payload := map[string]any{"items": items}
		if next != nil {
			payload["cursor"] = pagination.EncodeCursor(*next)
		}
		responses.WriteSuccess(w, payload)
	}
}
