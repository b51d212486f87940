package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/api/responses"
	"github.com/filmfusion-ai/filmfusion-backend/api/validators"
	"github.com/filmfusion-ai/filmfusion-backend/internal/aisessions"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
	pkgerrors "github.com/filmfusion-ai/filmfusion-backend/pkg/errors"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/logger"
)

// AIGenerator describes the metered generation entry point used by the HTTP layer.
type AIGenerator interface {
	Generate(ctx context.Context, userID uuid.UUID, input aisessions.GenerateInput) (*aisessions.GenerationDTO, error)
}

type generateRequest struct {
	ProjectID *string `json:"project_id,omitempty" validate:"omitempty,uuid"`
	Kind      string  `json:"kind" validate:"required"`
	Prompt    string  `json:"prompt" validate:"required,max=8000"`
}

// AIGenerate runs one metered AI generation call.
func AIGenerate(svc AIGenerator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ai service unavailable"))
			return
		}

		userID, err := authedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body generateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		kind, err := enums.ParseAISessionKind(body.Kind)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind"))
			return
		}

		input := aisessions.GenerateInput{Kind: kind, Prompt: body.Prompt}
		if body.ProjectID != nil {
			projectID, err := uuid.Parse(*body.ProjectID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid project_id"))
				return
			}
			input.ProjectID = &projectID
		}

		result, err := svc.Generate(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
