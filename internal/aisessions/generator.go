package aisessions

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// PlaceholderGenerator stands in for the model provider. It returns a
// stable artifact reference per call so downstream flows (metering,
// audit rows, client polling) can be exercised end to end before the
// real provider integration lands.
type PlaceholderGenerator struct {
	baseURL string
}

// NewPlaceholderGenerator builds a generator that mints artifact URLs
// under the provided base, e.g. "https://cdn.filmfusion.ai/ai".
func NewPlaceholderGenerator(baseURL string) *PlaceholderGenerator {
	if baseURL == "" {
		baseURL = "https://cdn.filmfusion.ai/ai"
	}
	return &PlaceholderGenerator{baseURL: baseURL}
}

func (g *PlaceholderGenerator) Generate(ctx context.Context, kind enums.AISessionKind, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/%s", g.baseURL, kind, uuid.NewString()), nil
}
