package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/filmfusion-ai/filmfusion-backend/api/responses"
	"github.com/filmfusion-ai/filmfusion-backend/api/validators"
	"github.com/filmfusion-ai/filmfusion-backend/internal/notifications"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

// NotificationLister describes the dispatch-log read path used by the HTTP layer.
type NotificationLister interface {
	ListByUser(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
}

// ListNotifications returns the caller's dispatch log, newest first.
func ListNotifications(svc NotificationLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
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

		result, err := svc.ListByUser(r.Context(), notifications.ListParams{
			UserID: userID,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
