package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/internal/overage"
	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// PlanDTO is one catalog entry in transport shape.
type PlanDTO struct {
	Name               enums.PlanTier  `json:"name"`
	MonthlyPriceCents  int64           `json:"monthly_price_cents"`
	AICallsLimit       int64           `json:"ai_calls_limit"`
	RenderMinutesLimit int64           `json:"render_minutes_limit"`
	StorageGBLimit     decimal.Decimal `json:"storage_gb_limit"`
}

// UsageDTO is a snapshot of the current cycle's consumption.
type UsageDTO struct {
	AICalls       int64           `json:"ai_calls"`
	RenderMinutes int64           `json:"render_minutes"`
	StorageGB     decimal.Decimal `json:"storage_gb"`
	ResetAt       time.Time       `json:"reset_at"`
}

// OverageLineDTO is one priced charge beyond plan limits.
type OverageLineDTO struct {
	Metric      enums.UsageMetric `json:"metric"`
	Quantity    decimal.Decimal   `json:"quantity"`
	AmountCents int64             `json:"amount_cents"`
	Description string            `json:"description"`
}

// SummaryDTO is the billing overview returned to the account page.
type SummaryDTO struct {
	Plan               PlanDTO                  `json:"plan"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscription_status"`
	IsPremium          bool                     `json:"is_premium"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
	Usage              UsageDTO                 `json:"usage"`
	Overage            []OverageLineDTO         `json:"overage"`
	OverageTotalCents  int64                    `json:"overage_total_cents"`
}

// CheckoutSessionDTO carries the hosted checkout redirect.
type CheckoutSessionDTO struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PortalSessionDTO carries the hosted billing portal redirect.
type PortalSessionDTO struct {
	URL string `json:"url"`
}

// OverageInvoiceDTO reports one issued overage invoice.
type OverageInvoiceDTO struct {
	InvoiceID  string           `json:"invoice_id"`
	TotalCents int64            `json:"total_cents"`
	Lines      []OverageLineDTO `json:"lines"`
}

func planDTO(tier plans.Tier) PlanDTO {
	return PlanDTO{
		Name:               tier.Name,
		MonthlyPriceCents:  tier.MonthlyPriceCents,
		AICallsLimit:       tier.AICallsLimit,
		RenderMinutesLimit: tier.RenderMinutesLimit,
		StorageGBLimit:     tier.StorageGBLimit,
	}
}

func usageDTO(counters usage.Counters) UsageDTO {
	return UsageDTO{
		AICalls:       counters.AICalls,
		RenderMinutes: counters.RenderMinutes,
		StorageGB:     counters.StorageGB,
		ResetAt:       counters.ResetAt,
	}
}

func overageLineDTOs(items []overage.LineItem) []OverageLineDTO {
	out := make([]OverageLineDTO, 0, len(items))
	for _, item := range items {
		out = append(out, OverageLineDTO{
			Metric:      item.Metric,
			Quantity:    item.Quantity,
			AmountCents: item.AmountCents,
			Description: item.Description,
		})
	}
	return out
}
