// Package analytics exports metered usage increments to BigQuery.
// Increments are published to the usage topic by an in-process emitter
// and ingested into the warehouse by a dedicated consumer, so a slow or
// unavailable warehouse never touches the request path.
package analytics

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// EventUsageRecorded is the Pub/Sub event type attribute for usage events.
const EventUsageRecorded = "usage.recorded"

// Event types stored in the warehouse, one per metered counter.
const (
	EventAICall          = "ai_call"
	EventRenderCompleted = "render_completed"
	EventStorageAdded    = "storage_added"
)

// UsageEvent is the payload published for a single metered increment.
type UsageEvent struct {
	UserID   uuid.UUID         `json:"userId"`
	Type     string            `json:"type"`
	Metric   enums.UsageMetric `json:"metric"`
	Quantity decimal.Decimal   `json:"quantity"`
}

// UsageEventRow is the BigQuery representation of a usage event.
type UsageEventRow struct {
	EventID    string    `bigquery:"event_id"`
	UserID     string    `bigquery:"user_id"`
	EventType  string    `bigquery:"event_type"`
	Metric     string    `bigquery:"metric"`
	Quantity   float64   `bigquery:"quantity"`
	OccurredAt time.Time `bigquery:"occurred_at"`
	InsertedAt time.Time `bigquery:"inserted_at"`
}

// eventsForDelta expands an increment into one event per non-zero counter.
func eventsForDelta(userID uuid.UUID, delta usage.Delta) []UsageEvent {
	var out []UsageEvent
	if delta.AICalls > 0 {
		out = append(out, UsageEvent{
			UserID:   userID,
			Type:     EventAICall,
			Metric:   enums.UsageMetricAICalls,
			Quantity: decimal.NewFromInt(delta.AICalls),
		})
	}
	if delta.RenderMinutes > 0 {
		out = append(out, UsageEvent{
			UserID:   userID,
			Type:     EventRenderCompleted,
			Metric:   enums.UsageMetricRenderMinutes,
			Quantity: decimal.NewFromInt(delta.RenderMinutes),
		})
	}
	if delta.StorageGB.IsPositive() {
		out = append(out, UsageEvent{
			UserID:   userID,
			Type:     EventStorageAdded,
			Metric:   enums.UsageMetricStorageGB,
			Quantity: delta.StorageGB,
		})
	}
	return out
}
