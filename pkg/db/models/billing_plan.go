package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// BillingPlan persists a plan tier row. The in-process catalog is seeded
// from compiled defaults plus config; this table exists so operational
// tooling can inspect and adjust price ids without a deploy.
type BillingPlan struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name               enums.PlanTier  `gorm:"column:name;type:plan_tier;not null;uniqueIndex"`
	MonthlyPriceCents  int64           `gorm:"column:monthly_price_cents;not null"`
	AICallsLimit       int64           `gorm:"column:ai_calls_limit;not null"`
	RenderMinutesLimit int64           `gorm:"column:render_minutes_limit;not null"`
	StorageGBLimit     decimal.Decimal `gorm:"column:storage_gb_limit;type:numeric(12,4);not null"`
	StripePriceID      *string         `gorm:"column:stripe_price_id"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
