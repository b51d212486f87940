package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/api/responses"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

// UsageReader describes the usage read path used by the HTTP layer.
type UsageReader interface {
	Get(ctx context.Context, userID uuid.UUID) (usage.Counters, error)
}

type usageResponse struct {
	AICalls       int64           `json:"ai_calls"`
	RenderMinutes int64           `json:"render_minutes"`
	StorageGB     decimal.Decimal `json:"storage_gb"`
	ResetAt       time.Time       `json:"reset_at"`
}

// GetUsage reports the caller's current-cycle consumption.
func GetUsage(svc UsageReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "usage service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		counters, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, usageResponse{
			AICalls:       counters.AICalls,
			RenderMinutes: counters.RenderMinutes,
			StorageGB:     counters.StorageGB,
			ResetAt:       counters.ResetAt,
		})
	}
}
