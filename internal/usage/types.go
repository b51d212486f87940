package usage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Counters is a snapshot of a user's monthly usage.
type Counters struct {
	AICalls       int64
	RenderMinutes int64
	StorageGB     decimal.Decimal
	ResetAt       time.Time
}

// Delta is an additive usage increment. All fields must be non-negative.
type Delta struct {
	AICalls       int64
	RenderMinutes int64
	StorageGB     decimal.Decimal
}

// IsZero reports whether the delta carries no increment at all.
func (d Delta) IsZero() bool {
	return d.AICalls == 0 && d.RenderMinutes == 0 && d.StorageGB.IsZero()
}

// Negative reports whether any component would decrement a counter.
func (d Delta) Negative() bool {
	return d.AICalls < 0 || d.RenderMinutes < 0 || d.StorageGB.IsNegative()
}
