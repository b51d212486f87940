// Package projects manages a user's video projects. Every operation is
// scoped to the owner; there is no cross-user sharing surface.
package projects

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/pagination"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// Service exposes project management operations.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateProjectInput) (*ProjectDTO, error)
	Get(ctx context.Context, userID, projectID uuid.UUID) (*ProjectDTO, error)
	Update(ctx context.Context, userID, projectID uuid.UUID, input UpdateProjectInput) (*ProjectDTO, error)
	Delete(ctx context.Context, userID, projectID uuid.UUID) error
	ListByUser(ctx context.Context, input ListProjectsInput) (*ProjectListResult, error)
}

type service struct {
	repo Repository
}

// NewService constructs a project service instance.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "project repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateProjectInput) (*ProjectDTO, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	project := &models.Project{
		UserID:      userID,
		Title:       title,
		Description: input.Description,
		Status:      enums.ProjectStatusDraft,
	}
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create project")
	}
	return fromModel(project), nil
}

func (s *service) Get(ctx context.Context, userID, projectID uuid.UUID) (*ProjectDTO, error) {
	project, err := s.findOwned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	return fromModel(project), nil
}

func (s *service) Update(ctx context.Context, userID, projectID uuid.UUID, input UpdateProjectInput) (*ProjectDTO, error) {
	project, err := s.findOwned(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
		}
		project.Title = title
	}
	if input.Description != nil {
		project.Description = input.Description
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown project status")
		}
		project.Status = *input.Status
	}

	if err := s.repo.Update(ctx, project); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update project")
	}
	return fromModel(project), nil
}

// Delete removes the project row. Storage usage already metered against
// the monthly ledger stays; counters are additive within a cycle.
func (s *service) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	project, err := s.findOwned(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, project.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete project")
	}
	return nil
}

func (s *service) ListByUser(ctx context.Context, input ListProjectsInput) (*ProjectListResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, next, err := s.repo.ListByUser(ctx, listProjectsParams{
		UserID: input.UserID,
		Limit:  input.Limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list projects")
	}

	result := &ProjectListResult{Items: make([]ProjectDTO, 0, len(rows))}
	for i := range rows {
		result.Items = append(result.Items, *fromModel(&rows[i]))
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// findOwned loads a project and enforces ownership. A foreign project is
// reported as not found, not forbidden, so ids cannot be probed.
func (s *service) findOwned(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.repo.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	if project.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return project, nil
}
