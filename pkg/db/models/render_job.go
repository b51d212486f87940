package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// RenderJob tracks one render through the simulated pipeline.
type RenderJob struct {
	ID              uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	ProjectID       uuid.UUID             `gorm:"column:project_id;type:uuid;not null;index"`
	Status          enums.RenderJobStatus `gorm:"column:status;type:render_job_status;not null;default:'queued'"`
	Progress        int                   `gorm:"column:progress;not null;default:0"`
	DurationMinutes int64                 `gorm:"column:duration_minutes;not null"`
	OutputURL       *string               `gorm:"column:output_url"`
	Error           *string               `gorm:"column:error"`
	StartedAt       *time.Time            `gorm:"column:started_at"`
	CompletedAt     *time.Time            `gorm:"column:completed_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
