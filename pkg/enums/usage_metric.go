package enums

import "fmt"

// UsageMetric identifies one of the metered counters on a user account.
type UsageMetric string

const (
	UsageMetricAICalls       UsageMetric = "ai_calls"
	UsageMetricRenderMinutes UsageMetric = "render_minutes"
	UsageMetricStorageGB     UsageMetric = "storage_gb"
)

var validUsageMetrics = []UsageMetric{
	UsageMetricAICalls,
	UsageMetricRenderMinutes,
	UsageMetricStorageGB,
}

// String implements fmt.Stringer.
func (m UsageMetric) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m UsageMetric) IsValid() bool {
	for _, candidate := range validUsageMetrics {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseUsageMetric converts raw input into a UsageMetric.
func ParseUsageMetric(value string) (UsageMetric, error) {
	for _, candidate := range validUsageMetrics {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid usage metric %q", value)
}
