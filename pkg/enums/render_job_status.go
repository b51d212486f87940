package enums

import "fmt"

// RenderJobStatus tracks a render job through the simulated pipeline.
type RenderJobStatus string

const (
	RenderJobStatusQueued     RenderJobStatus = "queued"
	RenderJobStatusProcessing RenderJobStatus = "processing"
	RenderJobStatusCompleted  RenderJobStatus = "completed"
	RenderJobStatusFailed     RenderJobStatus = "failed"
	RenderJobStatusCanceled   RenderJobStatus = "canceled"
)

var validRenderJobStatuses = []RenderJobStatus{
	RenderJobStatusQueued,
	RenderJobStatusProcessing,
	RenderJobStatusCompleted,
	RenderJobStatusFailed,
	RenderJobStatusCanceled,
}

// Terminal reports whether no further transitions are allowed.
func (s RenderJobStatus) Terminal() bool {
	switch s {
	case RenderJobStatusCompleted, RenderJobStatusFailed, RenderJobStatusCanceled:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (s RenderJobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s RenderJobStatus) IsValid() bool {
	for _, candidate := range validRenderJobStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseRenderJobStatus converts raw input into a RenderJobStatus.
func ParseRenderJobStatus(value string) (RenderJobStatus, error) {
	for _, candidate := range validRenderJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid render job status %q", value)
}
