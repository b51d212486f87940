package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// User is the canonical identity entity. Billing state and the monthly
// usage counters live on the user row; the billing provider remains the
// source of truth for subscription facts and the reconciler keeps these
// columns in sync with it.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string     `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	Name         string     `gorm:"column:name;not null"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`

	// Billing state, mutated only by the subscription reconciler.
	// StripeCustomerID is assigned once and never rewritten.
	StripeCustomerID     *string                  `gorm:"column:stripe_customer_id;uniqueIndex"`
	StripeSubscriptionID *string                  `gorm:"column:stripe_subscription_id"`
	SubscriptionStatus   enums.SubscriptionStatus `gorm:"column:subscription_status;type:subscription_status;not null;default:'inactive'"`
	PlanTier             enums.PlanTier           `gorm:"column:plan_tier;type:plan_tier;not null;default:'free'"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`

	// Monthly usage counters, incremented atomically in SQL.
	MonthlyAICalls       int64           `gorm:"column:monthly_ai_calls;not null;default:0"`
	MonthlyRenderMinutes int64           `gorm:"column:monthly_render_minutes;not null;default:0"`
	MonthlyStorageGB     decimal.Decimal `gorm:"column:monthly_storage_gb;type:numeric(12,4);not null;default:0"`
	UsageResetAt         time.Time       `gorm:"column:usage_reset_at;not null;autoCreateTime"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// IsPremium reports whether the user is on a paid plan in good standing.
func (u User) IsPremium() bool {
	return u.SubscriptionStatus == enums.SubscriptionStatusActive && u.PlanTier != enums.PlanTierFree
}
