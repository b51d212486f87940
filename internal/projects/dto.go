package projects

import (
	"time"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// ProjectDTO is the transport shape of a project.
type ProjectDTO struct {
	ID          uuid.UUID           `json:"id"`
	UserID      uuid.UUID           `json:"user_id"`
	Title       string              `json:"title"`
	Description *string             `json:"description,omitempty"`
	Status      enums.ProjectStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// CreateProjectInput holds the validated payload to create a project.
type CreateProjectInput struct {
	Title       string
	Description *string
}

// UpdateProjectInput holds optional mutation values for a project.
type UpdateProjectInput struct {
	Title       *string
	Description *string
	Status      *enums.ProjectStatus
}

// ListProjectsInput drives cursor pagination over a user's projects.
type ListProjectsInput struct {
	UserID uuid.UUID
	Limit  int
	Cursor string
}

// ProjectListResult is one page of projects plus the next cursor.
type ProjectListResult struct {
	Items  []ProjectDTO `json:"items"`
	Cursor string       `json:"cursor,omitempty"`
}

func fromModel(p *models.Project) *ProjectDTO {
	if p == nil {
		return nil
	}
	return &ProjectDTO{
		ID:          p.ID,
		UserID:      p.UserID,
		Title:       p.Title,
		Description: p.Description,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
