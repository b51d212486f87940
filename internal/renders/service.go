// Package renders queues video render jobs and tracks them through the
// simulated pipeline. Queueing is gated on the render_minutes metric;
// the minutes themselves are metered when the job completes.
package renders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/projects"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"
)

const maxDurationMinutes = 240

// Service exposes render job operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateRenderInput) (*RenderJobDTO, error)
	Get(ctx context.Context, userID, jobID uuid.UUID) (*RenderJobDTO, error)
	ListByUser(ctx context.Context, input ListRenderJobsInput) (*RenderJobListResult, error)
	Cancel(ctx context.Context, userID, jobID uuid.UUID) (*RenderJobDTO, error)
}

type projectLoader interface {
	Get(ctx context.Context, userID, projectID uuid.UUID) (*projects.ProjectDTO, error)
}

type usageGate interface {
	Allow(ctx context.Context, userID uuid.UUID, metric enums.UsageMetric) error
}

type service struct {
	repo     Repository
	projects projectLoader
	gate     usageGate
}

// NewService constructs a render job service instance.
func NewService(repo Repository, projectLoader projectLoader, gate usageGate) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "render repository required")
	}
	if projectLoader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "project loader required")
	}
	if gate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "usage gate required")
	}
	return &service{repo: repo, projects: projectLoader, gate: gate}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateRenderInput) (*RenderJobDTO, error) {
	if input.DurationMinutes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration must be positive")
	}
	if input.DurationMinutes > maxDurationMinutes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration exceeds the render cap")
	}
	if _, err := s.projects.Get(ctx, userID, input.ProjectID); err != nil {
		return nil, err
	}
	if err := s.gate.Allow(ctx, userID, enums.UsageMetricRenderMinutes); err != nil {
		return nil, err
	}

	job := &models.RenderJob{
		UserID:          userID,
		ProjectID:       input.ProjectID,
		Status:          enums.RenderJobStatusQueued,
		DurationMinutes: input.DurationMinutes,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue render job")
	}
	return fromModel(job), nil
}

func (s *service) Get(ctx context.Context, userID, jobID uuid.UUID) (*RenderJobDTO, error) {
	job, err := s.findOwned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	return fromModel(job), nil
}

func (s *service) ListByUser(ctx context.Context, input ListRenderJobsInput) (*RenderJobListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListByUser(ctx, listRenderJobsParams{
		UserID: input.UserID,
		Limit:  input.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list render jobs")
	}

	result := &RenderJobListResult{Items: make([]RenderJobDTO, 0, len(rows))}
	for i := range rows {
		result.Items = append(result.Items, *fromModel(&rows[i]))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// Cancel withdraws a job that has not started. Once a worker owns the
// job it runs to a terminal state on its own.
func (s *service) Cancel(ctx context.Context, userID, jobID uuid.UUID) (*RenderJobDTO, error) {
	job, err := s.findOwned(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}
	canceled, err := s.repo.CancelQueued(ctx, job.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel render job")
	}
	if !canceled {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "render already started")
	}
	job.Status = enums.RenderJobStatusCanceled
	return fromModel(job), nil
}

func (s *service) findOwned(ctx context.Context, userID, jobID uuid.UUID) (*models.RenderJob, error) {
	job, err := s.repo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "render job not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load render job")
	}
	if job.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "render job not found")
	}
	return job, nil
}
