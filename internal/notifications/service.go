// Package notifications renders and dispatches transactional email and
// keeps an append-only log of every attempt.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/email"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

// ServiceParams groups dependencies for the notification service.
type ServiceParams struct {
	Repo   Repository
	Sender email.Sender
	Logger *logger.Logger
}

// Service dispatches notification emails. Dispatch is best-effort:
// provider outages and template problems are logged and recorded but
// never surface to the caller, so billing flows cannot fail on email.
type Service struct {
	repo   Repository
	sender email.Sender
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires notification dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "email sender required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		repo:   params.Repo,
		sender: params.Sender,
		logg:   params.Logger,
		now:    time.Now,
	}, nil
}

// Dispatch sends one notification email to the user and logs the
// attempt. It never returns an error.
func (s *Service) Dispatch(ctx context.Context, kind enums.NotificationKind, user *models.User, data map[string]any) {
	if user == nil || user.Email == "" {
		s.logg.Warn(ctx, fmt.Sprintf("skipping %s notification: no recipient", kind))
		return
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":           user.ID.String(),
		"notification_kind": kind.String(),
	})

	content := renderTemplate(kind, user.Name, data)
	sendErr := s.sender.Send(ctx, email.Message{
		To:      user.Email,
		Subject: content.Subject,
		HTML:    content.HTML,
	})

	record := models.Notification{
		UserID:    user.ID,
		Kind:      kind,
		Recipient: user.Email,
		Subject:   content.Subject,
		Status:    enums.NotificationStatusSent,
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			record.Data = raw
		}
	}
	if sendErr != nil {
		message := sendErr.Error()
		record.Status = enums.NotificationStatusFailed
		record.Error = &message
		s.logg.Error(ctx, "notification email failed", sendErr)
	}

	if err := s.repo.Create(ctx, &record); err != nil {
		s.logg.Error(ctx, "recording notification attempt failed", err)
		return
	}
	if sendErr == nil {
		s.logg.Info(ctx, "notification sent")
	}
}

// UsageWarning dispatches a usage_warning email. It satisfies the usage
// service's warner hook.
func (s *Service) UsageWarning(ctx context.Context, user *models.User, metric enums.UsageMetric, used, limit int64) {
	percent := int64(0)
	if limit > 0 {
		percent = used * 100 / limit
	}
	s.Dispatch(ctx, enums.NotificationKindUsageWarning, user, map[string]any{
		"metric":  metric.String(),
		"used":    used,
		"limit":   limit,
		"percent": percent,
	})
}

// ListParams configures pagination for the notification log.
type ListParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// ListByUser returns the user's dispatch log, newest first.
func (s *Service) ListByUser(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID: params.UserID,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByUser(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// DeleteOlderThan prunes dispatch log rows created before the cutoff.
func (s *Service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune notifications")
	}
	return deleted, nil
}
