package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

const notificationRetentionDays = 30

type notificationPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationCleanupJobParams configure the dispatch-log retention job.
type NotificationCleanupJobParams struct {
	Logger        *logger.Logger
	Notifications notificationPruner
	RetentionDays int
	Now           func() time.Time
}

// NewNotificationCleanupJob builds the job that prunes old notification
// dispatch-log rows.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = notificationRetentionDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		repo:      params.Notifications,
		retention: retention,
		now:       now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	repo      notificationPruner
	retention int
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
