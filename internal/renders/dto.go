package renders

import (
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// RenderJobDTO is the transport shape of a render job.
type RenderJobDTO struct {
	ID              uuid.UUID             `json:"id"`
	UserID          uuid.UUID             `json:"user_id"`
	ProjectID       uuid.UUID             `json:"project_id"`
	Status          enums.RenderJobStatus `json:"status"`
	Progress        int                   `json:"progress"`
	DurationMinutes int64                 `json:"duration_minutes"`
	OutputURL       *string               `json:"output_url,omitempty"`
	Error           *string               `json:"error,omitempty"`
	StartedAt       *time.Time            `json:"started_at,omitempty"`
	CompletedAt     *time.Time            `json:"completed_at,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// CreateRenderInput holds the validated payload to queue a render.
type CreateRenderInput struct {
	ProjectID       uuid.UUID
	DurationMinutes int64
}

// ListRenderJobsInput drives cursor pagination over a user's render jobs.
type ListRenderJobsInput struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// RenderJobListResult is one page of render jobs plus the next cursor.
type RenderJobListResult struct {
	Items  []RenderJobDTO `json:"items"`
	Cursor string         `json:"cursor,omitempty"`
}

func fromModel(job *models.RenderJob) *RenderJobDTO {
	if job == nil {
		return nil
	}
	return &RenderJobDTO{
		ID:              job.ID,
		UserID:          job.UserID,
		ProjectID:       job.ProjectID,
		Status:          job.Status,
		Progress:        job.Progress,
		DurationMinutes: job.DurationMinutes,
		OutputURL:       job.OutputURL,
		Error:           job.Error,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		CreatedAt:       job.CreatedAt,
	}
}
