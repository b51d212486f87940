// Package aisessions is the metered entry point for AI generation
// calls. Every call passes the usage gate, increments the ai_calls
// counter, and leaves an audit row. The model invocation itself sits
// behind a collaborator interface.
package aisessions

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/db/models"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

// Generator produces AI content for a prompt. Production wires the
// model provider here; tests stub it.
type Generator interface {
	Generate(ctx context.Context, kind enums.AISessionKind, prompt string) (string, error)
}

type usageGate interface {
	Allow(ctx context.Context, userID uuid.UUID, metric enums.UsageMetric) error
	Record(ctx context.Context, userID uuid.UUID, delta usage.Delta) error
}

// Repository persists AI session audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, session *models.AISession) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an AI session repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, session *models.AISession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// GenerateInput holds the validated payload for one AI call.
type GenerateInput struct {
	ProjectID *uuid.UUID
	Kind      enums.AISessionKind
	Prompt    string
}

// GenerationDTO is the result of one AI call.
type GenerationDTO struct {
	SessionID uuid.UUID           `json:"session_id"`
	Kind      enums.AISessionKind `json:"kind"`
	Output    string              `json:"output"`
}

// ServiceParams groups dependencies for the AI session service.
type ServiceParams struct {
	Repo      Repository
	Usage     usageGate
	Generator Generator
	Logger    *logger.Logger
}

// Service meters and logs AI generation calls.
type Service struct {
	repo      Repository
	usage     usageGate
	generator Generator
	logg      *logger.Logger
}

// NewService builds an AI session service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ai session repository required")
	}
	if params.Usage == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "usage service required")
	}
	if params.Generator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "generator required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:      params.Repo,
		usage:     params.Usage,
		generator: params.Generator,
		logg:      params.Logger,
	}, nil
}

// Generate runs one metered AI call: gate, invoke, meter, audit.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, input GenerateInput) (*GenerationDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown generation kind")
	}
	prompt := strings.TrimSpace(input.Prompt)
	if prompt == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}

	if err := s.usage.Allow(ctx, userID, enums.UsageMetricAICalls); err != nil {
		return nil, err
	}

	output, err := s.generator.Generate(ctx, input.Kind, prompt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate content")
	}

	if err := s.usage.Record(ctx, userID, usage.Delta{AICalls: 1}); err != nil {
		return nil, err
	}

	session := &models.AISession{
		UserID:      userID,
		ProjectID:   input.ProjectID,
		Kind:        input.Kind,
		PromptChars: len(prompt),
		Units:       1,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		// The call was made and metered; a lost audit row is logged,
		// not surfaced to the caller.
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "record ai session", err)
	}

	return &GenerationDTO{SessionID: session.ID, Kind: input.Kind, Output: output}, nil
}
