// Package overage computes billable usage beyond a plan's included
// limits. It is pure: no storage, no provider calls.
package overage

import (
	"github.com/shopspring/decimal"

	"github.com/filmfusion-ai/filmfusion-backend/internal/plans"
	"github.com/filmfusion-ai/filmfusion-backend/internal/usage"
	"github.com/filmfusion-ai/filmfusion-backend/pkg/enums"
)

// Per-unit overage prices in cents, fixed across tiers.
var (
	PriceAICallCents       = decimal.NewFromInt(5)
	PriceRenderMinuteCents = decimal.NewFromInt(50)
	PriceStorageGBCents    = decimal.NewFromInt(200)
)

// Compute returns the excess amount per metric. A metric at or under its
// limit contributes zero; a metric with an unlimited (-1) cap is absent
// from the result entirely, not zero.
func Compute(counters usage.Counters, tier plans.Tier) map[enums.UsageMetric]decimal.Decimal {
	out := make(map[enums.UsageMetric]decimal.Decimal, 3)

	if tier.AICallsLimit != plans.Unlimited {
		out[enums.UsageMetricAICalls] = excessInt(counters.AICalls, tier.AICallsLimit)
	}
	if tier.RenderMinutesLimit != plans.Unlimited {
		out[enums.UsageMetricRenderMinutes] = excessInt(counters.RenderMinutes, tier.RenderMinutesLimit)
	}
	if storageLimited(tier.StorageGBLimit) {
		excess := counters.StorageGB.Sub(tier.StorageGBLimit)
		if excess.IsNegative() {
			excess = decimal.Zero
		}
		out[enums.UsageMetricStorageGB] = excess
	}
	return out
}

// LineItem is one overage charge ready for invoice-item creation.
type LineItem struct {
	Metric      enums.UsageMetric
	Quantity    decimal.Decimal
	AmountCents int64
	Description string
}

// LineItems prices an overage map. Amounts round to integer cents here,
// at invoice-item construction, never earlier; fractional storage GB is
// priced exactly then rounded once.
func LineItems(excess map[enums.UsageMetric]decimal.Decimal) []LineItem {
	items := make([]LineItem, 0, len(excess))
	for _, metric := range []enums.UsageMetric{
		enums.UsageMetricAICalls,
		enums.UsageMetricRenderMinutes,
		enums.UsageMetricStorageGB,
	} {
		quantity, ok := excess[metric]
		if !ok || quantity.IsZero() {
			continue
		}
		items = append(items, LineItem{
			Metric:      metric,
			Quantity:    quantity,
			AmountCents: quantity.Mul(unitPrice(metric)).Round(0).IntPart(),
			Description: description(metric),
		})
	}
	return items
}

func unitPrice(metric enums.UsageMetric) decimal.Decimal {
	switch metric {
	case enums.UsageMetricAICalls:
		return PriceAICallCents
	case enums.UsageMetricRenderMinutes:
		return PriceRenderMinuteCents
	default:
		return PriceStorageGBCents
	}
}

func description(metric enums.UsageMetric) string {
	switch metric {
	case enums.UsageMetricAICalls:
		return "AI call overage"
	case enums.UsageMetricRenderMinutes:
		return "Render minute overage"
	default:
		return "Storage overage (GB)"
	}
}

func excessInt(used, limit int64) decimal.Decimal {
	if used <= limit {
		return decimal.Zero
	}
	return decimal.NewFromInt(used - limit)
}

// storageLimited reports whether the storage cap applies. Storage uses a
// decimal limit; a negative value means uncapped, mirroring the -1
// convention on the integer limits.
func storageLimited(limit decimal.Decimal) bool {
	return !limit.IsNegative()
}
