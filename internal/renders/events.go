package renders

import "github.com/google/uuid"

// Event types published to the render events topic.
const (
	EventRenderCompleted = "render.completed"
	EventRenderFailed    = "render.failed"
)

// RenderFinishedEvent is the payload published when a render job
// reaches a terminal state.
type RenderFinishedEvent struct {
	RenderJobID     uuid.UUID `json:"renderJobId"`
	UserID          uuid.UUID `json:"userId"`
	ProjectID       uuid.UUID `json:"projectId"`
	ProjectName     string    `json:"projectName"`
	DurationMinutes int64     `json:"durationMinutes"`
	OutputURL       string    `json:"outputUrl,omitempty"`
	Reason          string    `json:"reason,omitempty"`
}
