package renders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

// Repository exposes persistence helpers for render jobs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, job *models.RenderJob) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
	ListByUser(ctx context.Context, params listRenderJobsParams) ([]models.RenderJob, *pagination.Cursor, error)
	ClaimQueued(ctx context.Context, at time.Time) (*models.RenderJob, error)
	SetProgress(ctx context.Context, id uuid.UUID, progress int) error
	Complete(ctx context.Context, id uuid.UUID, outputURL string, at time.Time) error
	Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	CancelQueued(ctx context.Context, id uuid.UUID) (bool, error)
	FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error)
}

type listRenderJobsParams struct {
	UserID uuid.UUID
	Limit  int
	Cursor *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a render job repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, job *models.RenderJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.RenderJob, error) {
	var job models.RenderJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *repositoryImpl) ListByUser(ctx context.Context, params listRenderJobsParams) ([]models.RenderJob, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.RenderJob{}).Where("user_id = ?", params.UserID)
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.RenderJob
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *pagination.Cursor
	if len(rows) > normalized {
		rows = rows[:normalized]
		last := rows[len(rows)-1]
		next = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

// ClaimQueued atomically moves the oldest queued job to processing.
// Returns (nil, nil) when the queue is empty. The status predicate on the
// update makes concurrent workers race safely: only one wins the row.
func (r *repositoryImpl) ClaimQueued(ctx context.Context, at time.Time) (*models.RenderJob, error) {
	var job models.RenderJob
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.RenderJobStatusQueued).
		Order("created_at ASC, id ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	res := r.db.WithContext(ctx).Model(&models.RenderJob{}).
		Where("id = ? AND status = ?", job.ID, enums.RenderJobStatusQueued).
		Updates(map[string]any{
			"status":     enums.RenderJobStatusProcessing,
			"started_at": at,
			"progress":   0,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// Another worker took it; the next tick tries again.
		return nil, nil
	}
	job.Status = enums.RenderJobStatusProcessing
	job.StartedAt = &at
	return &job, nil
}

func (r *repositoryImpl) SetProgress(ctx context.Context, id uuid.UUID, progress int) error {
	return r.db.WithContext(ctx).Model(&models.RenderJob{}).
		Where("id = ? AND status = ?", id, enums.RenderJobStatusProcessing).
		Update("progress", progress).Error
}

func (r *repositoryImpl) Complete(ctx context.Context, id uuid.UUID, outputURL string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.RenderJob{}).
		Where("id = ? AND status = ?", id, enums.RenderJobStatusProcessing).
		Updates(map[string]any{
			"status":       enums.RenderJobStatusCompleted,
			"progress":     100,
			"output_url":   outputURL,
			"completed_at": at,
		}).Error
}

func (r *repositoryImpl) Fail(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.RenderJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.RenderJobStatusFailed,
			"error":        reason,
			"completed_at": at,
		}).Error
}

// CancelQueued cancels the job only while it still sits in the queue.
// Reports false once a worker has picked it up.
func (r *repositoryImpl) CancelQueued(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.RenderJob{}).
		Where("id = ? AND status = ?", id, enums.RenderJobStatusQueued).
		Update("status", enums.RenderJobStatusCanceled)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FailStale marks processing jobs whose worker went away as failed.
func (r *repositoryImpl) FailStale(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.RenderJob{}).
		Where("status = ? AND started_at < ?", enums.RenderJobStatusProcessing, cutoff).
		Updates(map[string]any{
			"status": enums.RenderJobStatusFailed,
			"error":  reason,
		})
	return res.RowsAffected, res.Error
}
