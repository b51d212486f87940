// Package events defines the wire format shared by every Pub/Sub
// producer and consumer in the system.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttributeEventType is the Pub/Sub message attribute carrying the event type.
const AttributeEventType = "event_type"

// Envelope is the stable payload structure published to Pub/Sub topics.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// Wrap marshals a payload into a versioned envelope with a fresh event id.
func Wrap(payload any, now time.Time) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: now.UTC(),
		Data:       data,
	})
}
